package command

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	dmap "github.com/beam-cloud/redismap/pkg/abstractions/map"
)

func DemoCommand() *cli.Command {
	return &cli.Command{
		Name:  "demo",
		Usage: "Run a scripted walk through every map operation, clearing the hash first",
		Action: func(c *cli.Context) error {
			return withMap(c, func(ctx context.Context, m *dmap.RedisMap) error {
				return RunDemo(ctx, m, c.App.Writer)
			})
		},
	}
}

type demo struct {
	ctx    context.Context
	m      dmap.Map
	out    io.Writer
	failed int
}

func (d *demo) say(format string, args ...any) {
	fmt.Fprintf(d.out, format+"\n", args...)
}

func (d *demo) check(description string, ok bool) {
	d.say("%s, isTrue=%t", description, ok)
	if !ok {
		d.failed++
		log.Error().Str("check", description).Msg("demo check failed")
	}
}

func (d *demo) entries() error {
	entries, err := d.m.Entries(d.ctx)
	if err != nil {
		return err
	}

	d.say("All entries:")
	for _, field := range sortedFields(entries) {
		d.say("  %s => %d", field, entries[field])
	}
	return nil
}

func (d *demo) checkGet(field string, want int64) error {
	got, ok, err := d.m.Get(d.ctx, field)
	if err != nil {
		return err
	}

	d.check(fmt.Sprintf("Key [%s], value [%d]", field, want), ok && got == want)
	return nil
}

func (d *demo) checkContainsKey(field string, want bool) error {
	got, err := d.m.ContainsKey(d.ctx, field)
	if err != nil {
		return err
	}

	if want {
		d.check(fmt.Sprintf("Contains key [%s]", field), got)
	} else {
		d.check(fmt.Sprintf("Does not contain key [%s]", field), !got)
	}
	return nil
}

func (d *demo) checkContainsValue(value int64, want bool) error {
	got, err := d.m.ContainsValue(d.ctx, value)
	if err != nil {
		return err
	}

	if want {
		d.check(fmt.Sprintf("Contains value [%d]", value), got)
	} else {
		d.check(fmt.Sprintf("Does not contain value [%d]", value), !got)
	}
	return nil
}

func (d *demo) checkSize(want int64) error {
	got, err := d.m.Size(d.ctx)
	if err != nil {
		return err
	}

	d.check(fmt.Sprintf("Size = %d", want), got == want)
	return nil
}

func (d *demo) checkEmpty(want bool) error {
	got, err := d.m.IsEmpty(d.ctx)
	if err != nil {
		return err
	}

	if want {
		d.check("Map is empty", got)
	} else {
		d.check("Map is not empty", !got)
	}
	return nil
}

// RunDemo clears the map, exercises every operation on it and leaves it
// empty again. Each check is printed to out; any failed check makes the run
// fail once the script has finished.
func RunDemo(ctx context.Context, m dmap.Map, out io.Writer) error {
	d := &demo{ctx: ctx, m: m, out: out}
	if err := d.run(); err != nil {
		return errors.Wrap(err, "demo")
	}

	if d.failed > 0 {
		return errors.Errorf("demo: %d checks failed", d.failed)
	}

	return nil
}

func (d *demo) run() error {
	d.say("Clearing out map (redis)")
	if err := d.m.Clear(d.ctx); err != nil {
		return err
	}

	if err := d.checkEmpty(true); err != nil {
		return err
	}

	d.say("Starting to insert values")
	for i := int64(1); i <= 6; i++ {
		if _, _, err := d.m.Put(d.ctx, strconv.FormatInt(i, 10), i); err != nil {
			return err
		}
	}

	for i := int64(1); i <= 6; i++ {
		if err := d.checkGet(strconv.FormatInt(i, 10), i); err != nil {
			return err
		}
	}

	for i := int64(1); i <= 6; i++ {
		if err := d.checkContainsKey(strconv.FormatInt(i, 10), true); err != nil {
			return err
		}
	}
	if err := d.checkContainsKey("7", false); err != nil {
		return err
	}

	for i := int64(1); i <= 6; i++ {
		if err := d.checkContainsValue(i, true); err != nil {
			return err
		}
	}

	d.say("Replacing the value by key")
	oldValue, existed, err := d.m.Put(d.ctx, "6", 7)
	if err != nil {
		return err
	}

	if err := d.checkGet("6", 7); err != nil {
		return err
	}
	if err := d.checkContainsValue(6, false); err != nil {
		return err
	}
	if err := d.checkContainsValue(7, true); err != nil {
		return err
	}
	d.check("Old value from map with key [6], equals to 6", existed && oldValue == 6)

	if err := d.checkSize(6); err != nil {
		return err
	}

	d.say("Removing an entry")
	removedValue, existed, err := d.m.Remove(d.ctx, "2")
	if err != nil {
		return err
	}

	if err := d.checkContainsKey("2", false); err != nil {
		return err
	}
	d.check("Removed value from map with key [2], equals to 2", existed && removedValue == 2)

	if err := d.checkSize(5); err != nil {
		return err
	}
	if err := d.checkEmpty(false); err != nil {
		return err
	}
	if err := d.entries(); err != nil {
		return err
	}

	d.say("Putting a map into this redis map")
	if err := d.m.PutAll(d.ctx, map[string]int64{"8": 8, "9": 9, "10": 10}); err != nil {
		return err
	}

	expected := []struct {
		field string
		value int64
	}{{"1", 1}, {"3", 3}, {"4", 4}, {"5", 5}, {"6", 7}, {"8", 8}, {"9", 9}, {"10", 10}}
	for _, e := range expected {
		if err := d.checkGet(e.field, e.value); err != nil {
			return err
		}
	}

	if err := d.entries(); err != nil {
		return err
	}

	keys, err := d.m.Keys(d.ctx)
	if err != nil {
		return err
	}
	d.say("Map key set: %v", keys)

	values, err := d.m.Values(d.ctx)
	if err != nil {
		return err
	}
	d.say("Map values: %v", values)

	entries, err := d.m.Entries(d.ctx)
	if err != nil {
		return err
	}
	entrySet := make([]string, 0, len(entries))
	for _, field := range sortedFields(entries) {
		entrySet = append(entrySet, field+"="+strconv.FormatInt(entries[field], 10))
	}
	d.say("Map entry set: %v", entrySet)

	fallback, err := d.m.GetOrDefault(d.ctx, "5", 99)
	if err != nil {
		return err
	}
	d.check("getOrDefault for key [5] returned real value [5]", fallback == 5)

	fallback, err = d.m.GetOrDefault(d.ctx, "11", 99)
	if err != nil {
		return err
	}
	d.check("getOrDefault for key [11] returned default value [99]", fallback == 99)

	d.say("forEach works: ")
	err = d.m.ForEach(d.ctx, func(field string, value int64) {
		d.say("Key: %s; Value: %d", field, value)
	})
	if err != nil {
		return err
	}

	d.say("Clearing out a map by calling remove method")
	for i := 0; i <= 10; i++ {
		if _, _, err := d.m.Remove(d.ctx, strconv.Itoa(i)); err != nil {
			return err
		}
	}

	if err := d.checkEmpty(true); err != nil {
		return err
	}

	d.say("Inserting an entry again to clear out the map by calling clear method")
	if _, _, err := d.m.Put(d.ctx, "1", 1); err != nil {
		return err
	}

	if err := d.checkEmpty(false); err != nil {
		return err
	}

	if err := d.m.Clear(d.ctx); err != nil {
		return err
	}

	return d.checkEmpty(true)
}

func sortedFields(entries map[string]int64) []string {
	fields := make([]string, 0, len(entries))
	for field := range entries {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}
