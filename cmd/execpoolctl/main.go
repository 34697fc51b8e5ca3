// Command execpoolctl is a terminal dashboard for a running execpool admin
// surface: it polls GET /stats and redraws a bar sized to the current
// terminal width, the way an operator would watch pool occupancy during a
// load test without needing a browser.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

type stats struct {
	PoolSize         uint32  `json:"pool_size"`
	ActiveCount      uint32  `json:"active_count"`
	MinSize          uint32  `json:"min_size"`
	MaxSize          uint32  `json:"max_size"`
	KeepAliveSeconds float64 `json:"keep_alive_seconds"`
	Shutdown         bool    `json:"shutdown"`
}

func main() {
	addr := flag.String("addr", "http://localhost:9090", "base URL of the execpool admin surface")
	interval := flag.Duration("interval", time.Second, "poll interval")
	flag.Parse()

	client := &http.Client{Timeout: 3 * time.Second}

	for {
		s, err := fetchStats(client, *addr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "execpoolctl: %v\n", err)
			time.Sleep(*interval)
			continue
		}
		render(s)
		time.Sleep(*interval)
	}
}

func fetchStats(client *http.Client, addr string) (*stats, error) {
	resp, err := client.Get(strings.TrimRight(addr, "/") + "/stats")
	if err != nil {
		return nil, fmt.Errorf("fetching stats: %w", err)
	}
	defer resp.Body.Close()

	var s stats
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding stats: %w", err)
	}
	return &s, nil
}

func render(s *stats) {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		width = 80
	}

	fmt.Print("\033[H\033[2J")
	fmt.Printf("execpool  min=%d max=%d keepalive=%.0fs shutdown=%v\n\n",
		s.MinSize, s.MaxSize, s.KeepAliveSeconds, s.Shutdown)
	fmt.Println(occupancyBar(s.ActiveCount, s.PoolSize, s.MaxSize, width-2))
}

// occupancyBar renders a terminal-width bar split into active (working),
// idle (alive but parked), and free (below max, not yet spawned)
// segments.
func occupancyBar(active, current, max uint32, width int) string {
	if width < 10 {
		width = 10
	}
	if max == 0 {
		max = 1
	}

	activeCells := scale(active, max, width)
	idle := current - active
	idleCells := scale(idle, max, width)
	if activeCells+idleCells > width {
		idleCells = width - activeCells
	}
	freeCells := width - activeCells - idleCells

	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(strings.Repeat("#", activeCells))
	b.WriteString(strings.Repeat("-", idleCells))
	b.WriteString(strings.Repeat(".", freeCells))
	b.WriteByte(']')
	fmt.Fprintf(&b, " %d/%d active, %d/%d pool", active, max, current, max)
	return b.String()
}

func scale(n, max uint32, width int) int {
	if max == 0 {
		return 0
	}
	cells := int(float64(n) / float64(max) * float64(width))
	if cells < 0 {
		cells = 0
	}
	if cells > width {
		cells = width
	}
	return cells
}
