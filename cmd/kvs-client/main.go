// Package main is the kvs-client entry point: a thin CLI over
// internal/client's single-request-per-connection dialer.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/aether-kv/kvs/internal/client"
	flag "github.com/spf13/pflag"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:4000", "server address (IP:PORT)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: kvs-client [--addr IP:PORT] set <key> <value> | get <key> | rm <key> | scan")
		os.Exit(1)
	}

	c := client.New(*addr)
	if err := run(c, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *client.Client, args []string) error {
	switch args[0] {
	case "set":
		if len(args) != 3 {
			return fmt.Errorf("usage: set <key> <value>")
		}
		return c.Set(args[1], args[2])
	case "get":
		if len(args) != 2 {
			return fmt.Errorf("usage: get <key>")
		}
		value, found, err := c.Get(args[1])
		if err != nil {
			return err
		}
		if !found {
			fmt.Println("Key not found")
			return nil
		}
		fmt.Println(value)
		return nil
	case "rm":
		if len(args) != 2 {
			return fmt.Errorf("usage: rm <key>")
		}
		return c.Remove(args[1])
	case "scan":
		if len(args) != 1 {
			return fmt.Errorf("usage: scan")
		}
		keys, err := c.Scan()
		if err != nil {
			return err
		}
		fmt.Println(strings.Join(keys, "\n"))
		return nil
	default:
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
}
