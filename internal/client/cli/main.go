package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

func (a *App) Main(ctx context.Context) {

	fmt.Println("tresor CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Printf("tresor %s > ", a.cwdName())
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		if !a.isUnlocked() && cmd != "unlock" && cmd != "help" && cmd != "exit" && cmd != "quit" {
			fmt.Println("Locked. Run 'unlock' first.")
			continue
		}

		switch cmd {
		case "help":
			if a.isUnlocked() {
				fmt.Println("Available commands: ls, cd <name|..>, mkdir <name>, put <path>, get <name> [dest], zip <dest.zip>, rename <name> <new>, usage, exit")
			} else {
				fmt.Println("Available commands: unlock, exit")
			}
		case "unlock":
			if err := a.Unlock(ctx); err != nil {
				fmt.Println("Error:", err)
			}
		case "ls":
			a.Ls(ctx)
		case "cd":
			if len(args) != 1 {
				fmt.Println("Usage: cd <name|..>")
				continue
			}
			a.Cd(ctx, args[0])
		case "mkdir":
			if len(args) != 1 {
				fmt.Println("Usage: mkdir <name>")
				continue
			}
			a.Mkdir(ctx, args[0])
		case "put":
			if len(args) != 1 {
				fmt.Println("Usage: put <path>")
				continue
			}
			a.Put(ctx, args[0])
		case "get":
			if len(args) < 1 || len(args) > 2 {
				fmt.Println("Usage: get <name> [dest]")
				continue
			}
			dest := ""
			if len(args) == 2 {
				dest = args[1]
			}
			a.Get(ctx, args[0], dest)
		case "zip":
			if len(args) != 1 {
				fmt.Println("Usage: zip <dest.zip>")
				continue
			}
			a.Zip(ctx, args[0])
		case "rename":
			if len(args) != 2 {
				fmt.Println("Usage: rename <name> <new>")
				continue
			}
			a.Rename(ctx, args[0], args[1])
		case "usage":
			a.Usage(ctx)
		case "exit", "quit":
			fmt.Println("Bye!")
			return
		default:
			fmt.Println("Unknown command:", cmd)
		}
	}
}
