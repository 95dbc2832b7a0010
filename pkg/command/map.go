package command

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	dmap "github.com/beam-cloud/redismap/pkg/abstractions/map"
)

const absent = "<absent>"

func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Print the value of a field",
		ArgsUsage: "FIELD",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:  "default",
				Usage: "Print this instead of failing when the field is absent",
			},
		},
		Action: mapGet,
	}
}

func PutCommand() *cli.Command {
	return &cli.Command{
		Name:      "put",
		Usage:     "Set a field and print the value it replaced",
		ArgsUsage: "FIELD VALUE",
		Action:    mapPut,
	}
}

func RemoveCommand() *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Aliases:   []string{"rm"},
		Usage:     "Delete a field and print the value it held",
		ArgsUsage: "FIELD",
		Action:    mapRemove,
	}
}

func ListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List entries, fields or values",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "keys",
				Usage: "Only print field names",
			},
			&cli.BoolFlag{
				Name:  "values",
				Usage: "Only print values",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print entries as a JSON object",
			},
		},
		Action: mapList,
	}
}

func SizeCommand() *cli.Command {
	return &cli.Command{
		Name:   "size",
		Usage:  "Print the number of fields",
		Action: mapSize,
	}
}

func ClearCommand() *cli.Command {
	return &cli.Command{
		Name:   "clear",
		Usage:  "Delete the whole hash",
		Action: mapClear,
	}
}

func mapGet(c *cli.Context) error {
	field, err := fieldArg(c)
	if err != nil {
		return err
	}

	return withMap(c, func(ctx context.Context, m *dmap.RedisMap) error {
		if c.IsSet("default") {
			value, err := m.GetOrDefault(ctx, field, c.Int64("default"))
			if err != nil {
				return err
			}

			fmt.Fprintln(c.App.Writer, value)
			return nil
		}

		value, ok, err := m.Get(ctx, field)
		if err != nil {
			return err
		}

		if !ok {
			return errors.Errorf("field %q not found", field)
		}

		fmt.Fprintln(c.App.Writer, value)
		return nil
	})
}

func mapPut(c *cli.Context) error {
	if c.NArg() < 2 {
		return errors.New("FIELD and VALUE are required")
	}

	field := c.Args().Get(0)
	value, err := strconv.ParseInt(c.Args().Get(1), 10, 64)
	if err != nil {
		return errors.Wrapf(err, "VALUE %q is not an integer", c.Args().Get(1))
	}

	return withMap(c, func(ctx context.Context, m *dmap.RedisMap) error {
		previous, existed, err := m.Put(ctx, field, value)
		if err != nil {
			return err
		}

		printPrevious(c, previous, existed)
		return nil
	})
}

func mapRemove(c *cli.Context) error {
	field, err := fieldArg(c)
	if err != nil {
		return err
	}

	return withMap(c, func(ctx context.Context, m *dmap.RedisMap) error {
		previous, existed, err := m.Remove(ctx, field)
		if err != nil {
			return err
		}

		printPrevious(c, previous, existed)
		return nil
	})
}

func mapList(c *cli.Context) error {
	return withMap(c, func(ctx context.Context, m *dmap.RedisMap) error {
		switch {
		case c.Bool("keys"):
			keys, err := m.Keys(ctx)
			if err != nil {
				return err
			}

			sort.Strings(keys)
			for _, key := range keys {
				fmt.Fprintln(c.App.Writer, key)
			}
			return nil

		case c.Bool("values"):
			values, err := m.Values(ctx)
			if err != nil {
				return err
			}

			for _, value := range values {
				fmt.Fprintln(c.App.Writer, value)
			}
			return nil
		}

		entries, err := m.Entries(ctx)
		if err != nil {
			return err
		}

		if c.Bool("json") {
			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}

		printEntries(c, entries)
		return nil
	})
}

func mapSize(c *cli.Context) error {
	return withMap(c, func(ctx context.Context, m *dmap.RedisMap) error {
		size, err := m.Size(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintln(c.App.Writer, size)
		return nil
	})
}

func mapClear(c *cli.Context) error {
	return withMap(c, func(ctx context.Context, m *dmap.RedisMap) error {
		return m.Clear(ctx)
	})
}

func printPrevious(c *cli.Context, previous int64, existed bool) {
	if !existed {
		fmt.Fprintln(c.App.Writer, absent)
		return
	}

	fmt.Fprintln(c.App.Writer, previous)
}

func printEntries(c *cli.Context, entries map[string]int64) {
	for _, field := range sortedFields(entries) {
		fmt.Fprintf(c.App.Writer, "  %s => %d\n", field, entries[field])
	}
}
