package cli

import (
	"context"
	"fmt"
	"time"
)

// Ls prints the current folder's listing, fetched fresh from the server.
func (a *App) Ls(ctx context.Context) {
	entries, err := a.refresh(ctx)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	if len(entries) == 0 {
		fmt.Println("(empty)")
		return
	}

	for _, e := range entries {
		added := time.Unix(e.DateAdded, 0).UTC().Format("2006-01-02 15:04")
		if e.IsFolder {
			fmt.Printf("d %10s  %s  %s/\n", "", added, e.Name)
		} else {
			fmt.Printf("- %10d  %s  %s\n", e.Size, added, e.Name)
		}
	}
}

// Cd moves into a child folder, or back up with "..".
func (a *App) Cd(ctx context.Context, name string) {
	if name == ".." {
		if len(a.path) > 1 {
			a.path = a.path[:len(a.path)-1]
		}
		return
	}

	entry, err := a.findByName(ctx, name)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	if !entry.IsFolder {
		fmt.Println("Error: not a folder")
		return
	}
	a.path = append(a.path, crumb{handle: entry.Handle, name: entry.Name})
}
