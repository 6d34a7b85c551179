package main

import (
	"fmt"
	"os"

	"github.com/thaakir07/voicehub/internal/store"
)

// RunCLI handles administrative subcommands that operate on the store
// directly, without starting the server. Returns true if a subcommand was
// handled.
func RunCLI(args []string, dbPath string) bool {
	if len(args) == 0 {
		return false
	}

	switch args[0] {
	case "names":
		return cliNames(args[1:], dbPath)
	case "settings":
		return cliSettings(args[1:], dbPath)
	default:
		return false
	}
}

func openCLIStore(dbPath string) *store.Store {
	st, err := store.New(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	return st
}

// cliNames manages the reserved-name deny-list consulted during the
// handshake (see internal/server.NameChecker).
func cliNames(args []string, dbPath string) bool {
	st := openCLIStore(dbPath)
	defer st.Close()

	if len(args) == 0 || args[0] == "list" {
		names, err := st.GetReservedNames()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if len(names) == 0 {
			fmt.Println("No reserved names.")
			return true
		}
		for _, n := range names {
			fmt.Printf("  %s (reserved by %s)\n", n.Name, n.ClaimedBy)
		}
		return true
	}

	if args[0] == "reserve" && len(args) > 1 {
		name := args[1]
		by := "admin"
		if len(args) > 2 {
			by = args[2]
		}
		ok, err := st.ReserveName(name, by)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if !ok {
			fmt.Printf("%q is already reserved.\n", name)
			return true
		}
		fmt.Printf("Reserved %q.\n", name)
		return true
	}

	if args[0] == "release" && len(args) > 1 {
		name := args[1]
		if err := st.ReleaseName(name); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Released %q.\n", name)
		return true
	}

	fmt.Fprintf(os.Stderr, "Usage: voicehubd names [list|reserve <name> [by]|release <name>]\n")
	os.Exit(1)
	return true
}

func cliSettings(args []string, dbPath string) bool {
	st := openCLIStore(dbPath)
	defer st.Close()

	if len(args) == 0 || args[0] == "list" {
		settings, err := st.GetAllSettings()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		for k, v := range settings {
			fmt.Printf("  %s = %s\n", k, v)
		}
		return true
	}

	if args[0] == "set" && len(args) > 2 {
		key, value := args[1], args[2]
		if err := st.SetSetting(key, value); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Set %s = %s\n", key, value)
		return true
	}

	fmt.Fprintf(os.Stderr, "Usage: voicehubd settings [list|set <key> <value>]\n")
	os.Exit(1)
	return true
}
