package cli

import (
	"context"
	"fmt"
)

// Usage prints the account's stored bytes as reported by the server.
func (a *App) Usage(ctx context.Context) {
	used, err := a.client.GetUsage(ctx)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Printf("Storage used: %d bytes (%.2f MiB)\n", used, float64(used)/(1024*1024))
}
