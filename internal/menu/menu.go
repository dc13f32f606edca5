// Package menu is the interactive text front end for harvest runs.
package menu

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"sjsage522/harvester/internal/crawler"
	"sjsage522/harvester/internal/site"
	"sjsage522/harvester/internal/store"
	herrors "sjsage522/harvester/pkg/errors"
)

const rule = "============================================================"

// Harvester runs harvests on behalf of the menu
type Harvester interface {
	Harvest(ctx context.Context, siteID string, categories ...string) (crawler.Result, error)
	HarvestCategory(ctx context.Context, siteID string, ordinal int) (crawler.Result, error)
	HarvestAll(ctx context.Context) ([]crawler.Result, error)
}

// Menu reads choices from in and writes prompts and results to out
type Menu struct {
	harvester Harvester
	store     store.Store
	registry  *site.Registry
	status    *site.Status
	in        *bufio.Scanner
	out       io.Writer
}

// New creates a menu
func New(h Harvester, st store.Store, registry *site.Registry, status *site.Status, in io.Reader, out io.Writer) *Menu {
	return &Menu{
		harvester: h,
		store:     st,
		registry:  registry,
		status:    status,
		in:        bufio.NewScanner(in),
		out:       out,
	}
}

// Run shows the main menu until the user exits, input ends or ctx is done
func (m *Menu) Run(ctx context.Context) error {
	ids := m.registry.IDs()
	names := make([]string, len(ids))
	for i, id := range ids {
		def, _ := m.registry.Definition(id)
		names[i] = def.Name
	}

	fmt.Fprintln(m.out, rule)
	fmt.Fprintln(m.out, "MULTI-WEBSITE PRODUCT HARVESTER")
	fmt.Fprintln(m.out, rule)
	fmt.Fprintf(m.out, "Supports: %s\n", strings.Join(names, " | "))
	m.printStatus()

	allOpt := len(ids) + 1
	statsOpt := len(ids) + 2
	clearOpt := len(ids) + 3
	exitOpt := len(ids) + 4

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprintln(m.out, "\nMAIN MENU:")
		for i, name := range names {
			fmt.Fprintf(m.out, "  %d. Harvest %s\n", i+1, name)
		}
		fmt.Fprintf(m.out, "  %d. Harvest All Websites\n", allOpt)
		fmt.Fprintf(m.out, "  %d. Show Statistics\n", statsOpt)
		fmt.Fprintf(m.out, "  %d. Clear Database\n", clearOpt)
		fmt.Fprintf(m.out, "  %d. Exit\n", exitOpt)

		line, ok := m.prompt(fmt.Sprintf("Select option (1-%d): ", exitOpt))
		if !ok {
			return nil
		}
		choice, err := strconv.Atoi(line)
		if err != nil {
			fmt.Fprintln(m.out, "Invalid choice")
			continue
		}

		switch {
		case choice >= 1 && choice <= len(ids):
			if err := m.harvestSite(ctx, ids[choice-1]); err != nil {
				return err
			}
		case choice == allOpt:
			if err := m.harvestAll(ctx); err != nil {
				return err
			}
		case choice == statsOpt:
			if err := PrintStats(ctx, m.out, m.store, m.registry, m.status); err != nil {
				fmt.Fprintf(m.out, "Error: %v\n", err)
			}
		case choice == clearOpt:
			m.clear(ctx)
		case choice == exitOpt:
			fmt.Fprintln(m.out, "Exiting...")
			return nil
		default:
			fmt.Fprintln(m.out, "Invalid choice")
		}
	}
}

func (m *Menu) prompt(text string) (string, bool) {
	fmt.Fprintf(m.out, "\n%s", text)
	if !m.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(m.in.Text()), true
}

func (m *Menu) printStatus() {
	fmt.Fprintln(m.out, "\nWebsite status:")
	for _, id := range m.registry.IDs() {
		def, _ := m.registry.Definition(id)
		fmt.Fprintf(m.out, "  %s: %s\n", def.Name, accessLabel(m.status.Accessible(id)))
	}
}

func (m *Menu) harvestSite(ctx context.Context, id string) error {
	def, err := m.registry.Definition(id)
	if err != nil {
		return err
	}
	labels, _ := m.registry.Categories(id)

	fmt.Fprintf(m.out, "\n%s Categories:\n", def.Name)
	for i, label := range labels {
		fmt.Fprintf(m.out, "  %d. %s\n", i+1, label)
	}
	fmt.Fprintln(m.out, "  a. All categories")

	line, ok := m.prompt(fmt.Sprintf("Select category (1-%d or a): ", len(labels)))
	if !ok {
		return nil
	}

	var res crawler.Result
	if strings.EqualFold(line, "a") {
		res, err = m.harvester.Harvest(ctx, id)
	} else {
		n, convErr := strconv.Atoi(line)
		if convErr != nil {
			fmt.Fprintln(m.out, "Invalid input")
			return nil
		}
		res, err = m.harvester.HarvestCategory(ctx, id, n)
	}

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if herrors.Is(err, herrors.ErrorTypeUnknownCategory) {
			fmt.Fprintln(m.out, "Invalid category")
			return nil
		}
		fmt.Fprintf(m.out, "Harvest failed: %v\n", err)
		return nil
	}
	m.printResult(def.Name, res)
	return nil
}

func (m *Menu) harvestAll(ctx context.Context) error {
	fmt.Fprintln(m.out, "\nHarvesting all websites...")
	results, err := m.harvester.HarvestAll(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	total := 0
	for _, res := range results {
		def, _ := m.registry.Definition(res.Site)
		m.printResult(def.Name, res)
		total += res.Added
	}
	if err != nil {
		fmt.Fprintf(m.out, "Some harvests failed: %v\n", err)
	}
	fmt.Fprintf(m.out, "\nTotal added from all websites: %d\n", total)
	return nil
}

func (m *Menu) printResult(name string, res crawler.Result) {
	if res.Mode == "" {
		fmt.Fprintf(m.out, "\nNo products harvested from %s\n", name)
		return
	}
	fmt.Fprintf(m.out, "\nAdded %d products from %s (live: %d, demo: %d)\n", res.Added, name, res.LiveAdded, res.DemoAdded)
	switch {
	case res.Escalated:
		fmt.Fprintf(m.out, "  Switched to demo data: %s\n", res.Reason)
	case res.Mode == crawler.ModeDemo:
		fmt.Fprintf(m.out, "  Demo data used: %s\n", res.Reason)
	}
	if res.Skipped > 0 {
		fmt.Fprintf(m.out, "  %d already stored\n", res.Skipped)
	}
}

func (m *Menu) clear(ctx context.Context) {
	line, ok := m.prompt("Are you sure you want to clear the database? (yes/no): ")
	if !ok || strings.ToLower(line) != "yes" {
		fmt.Fprintln(m.out, "Cancelled")
		return
	}
	n, err := m.store.Clear(ctx)
	if err != nil {
		fmt.Fprintf(m.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(m.out, "Database cleared (%d records removed)\n", n)
}

// PrintStats writes the store statistics and site status to w
func PrintStats(ctx context.Context, w io.Writer, st store.Store, registry *site.Registry, status *site.Status) error {
	stats, err := st.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "\n"+rule)
	fmt.Fprintln(w, "DATABASE STATISTICS")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Total Products: %d\n", stats.Total)
	fmt.Fprintf(w, "With Quantity:  %d\n", stats.WithQuantity)

	websites := make([]string, 0, len(stats.ByWebsite))
	for website := range stats.ByWebsite {
		websites = append(websites, website)
	}
	sort.Strings(websites)

	fmt.Fprintln(w, "\nProducts by Website:")
	for _, website := range websites {
		fmt.Fprintf(w, "  - %s: %d products\n", website, stats.ByWebsite[website])
	}

	fmt.Fprintln(w, "\nWebsite Status:")
	for _, id := range registry.IDs() {
		def, _ := registry.Definition(id)
		mode := "DEMO"
		if status.Accessible(id) {
			mode = "LIVE"
		}
		fmt.Fprintf(w, "  - %s: %s\n", def.Name, mode)
	}

	fmt.Fprintln(w, "\nSample Products:")
	for _, website := range websites {
		s, ok := stats.Samples[website]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "  %s: %s - %s - Qty: %s\n", website, truncate(s.Name, 30), s.Price, s.Quantity)
	}
	fmt.Fprintln(w, rule)
	return nil
}

func accessLabel(ok bool) string {
	if ok {
		return "ACCESSIBLE"
	}
	return "NOT ACCESSIBLE"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
