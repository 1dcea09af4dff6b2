package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/astromechza/teleprompter-sync/pkg/state"
)

var errQuit = errors.New("quit")

const usage = `commands:
  tab <tab>                     edit a tab
  show <tab>                    display a tab
  content <tab> <text...>       replace a tab's text
  add <category> <text...>      add a prayer item
  detail <item> <text...>       set an item's detail
  text <item> <text...>         rename an item
  done <item>                   toggle an item's completed flag
  move <item> <category>        move an item to another category
  before <item> <target>        reorder an item before another
  rm <item>                     remove an item
  clear                         remove every item
  cat-add <label> [icon] [tag]  add a category
  cat-label <category> <text..> relabel a category
  cat-rm <category>             remove a category
  speed <0-100>                 set the scroll speed
  toggle                        start or stop auto scrolling
  font <sm|md|lg|xl|2xl>        set the font size
  print                         print the current snapshot
  quit`

// execute applies one command line to the store. It returns errQuit when the
// user asks to leave.
func execute(store *state.Store, line string, dump func(state.Snapshot)) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := fields[0], fields[1:]
	rest := func(from int) string {
		return strings.Join(args[from:], " ")
	}
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s: expected at least %d arguments", cmd, n)
		}
		return nil
	}

	switch cmd {
	case "quit", "exit":
		return errQuit
	case "help":
		fmt.Println(usage)
	case "print":
		dump(store.Snapshot())
	case "tab":
		if err := need(1); err != nil {
			return err
		}
		store.SetActiveTab(args[0])
	case "show":
		if err := need(1); err != nil {
			return err
		}
		store.SetDisplayTab(args[0])
	case "content":
		if err := need(1); err != nil {
			return err
		}
		store.SetTabContent(args[0], rest(1))
	case "add":
		if err := need(2); err != nil {
			return err
		}
		store.AddItem(args[0], rest(1), "")
	case "detail":
		if err := need(1); err != nil {
			return err
		}
		detail := rest(1)
		store.UpdateItem(args[0], state.ItemPatch{Detail: &detail})
	case "text":
		if err := need(2); err != nil {
			return err
		}
		text := rest(1)
		store.UpdateItem(args[0], state.ItemPatch{Text: &text})
	case "done":
		if err := need(1); err != nil {
			return err
		}
		it, ok := store.Snapshot().Item(args[0])
		if !ok {
			return fmt.Errorf("no item %q", args[0])
		}
		completed := !it.Completed
		store.UpdateItem(args[0], state.ItemPatch{Completed: &completed})
	case "move":
		if err := need(2); err != nil {
			return err
		}
		store.UpdateItem(args[0], state.ItemPatch{CategoryID: &args[1]})
	case "before":
		if err := need(2); err != nil {
			return err
		}
		store.ReorderItem(args[0], args[1])
	case "rm":
		if err := need(1); err != nil {
			return err
		}
		store.RemoveItem(args[0])
	case "clear":
		store.ClearAllItems()
	case "cat-add":
		if err := need(1); err != nil {
			return err
		}
		icon, tag := "", ""
		if len(args) > 1 {
			icon = args[1]
		}
		if len(args) > 2 {
			tag = args[2]
		}
		store.AddCategory(args[0], icon, tag)
	case "cat-label":
		if err := need(2); err != nil {
			return err
		}
		label := rest(1)
		store.UpdateCategory(args[0], state.CategoryPatch{Label: &label})
	case "cat-rm":
		if err := need(1); err != nil {
			return err
		}
		store.RemoveCategory(args[0])
	case "speed":
		if err := need(1); err != nil {
			return err
		}
		speed, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("speed: %w", err)
		}
		store.SetScrollSpeed(speed)
	case "toggle":
		store.ToggleAutoScroll()
	case "font":
		if err := need(1); err != nil {
			return err
		}
		size := state.FontSize(args[0])
		if !size.Valid() {
			return fmt.Errorf("font: unknown size %q", args[0])
		}
		store.SetFontSize(size)
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
	return nil
}
