// Package assistant answers food questions with a text generator primed
// with the live catalog and the student's recent orders.
package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/dormdash/internal/domain/order"
	"github.com/xenking/dormdash/internal/domain/validation"
	"github.com/xenking/dormdash/internal/domain/vendor"
)

// HistoryLimit is how many recent orders are included in the prompt.
const HistoryLimit = 5

const menuConcurrency = 8

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Catalog lists vendors and their menus.
type Catalog interface {
	Browse(ctx context.Context, f vendor.Filter) ([]vendor.Vendor, error)
	Menu(ctx context.Context, vendorID string) ([]vendor.MenuItem, error)
}

// History lists a student's most recent orders.
type History interface {
	RecentByStudent(ctx context.Context, studentID string, limit int) ([]order.Order, error)
}

// Answer is the generated reply and the vendor it recommends, if any.
type Answer struct {
	Text       string
	VendorID   string
	VendorName string
}

type restaurant struct {
	vendor vendor.Vendor
	menu   []vendor.MenuItem
}

// Service assembles prompts and links vendors mentioned in replies.
type Service struct {
	catalog Catalog
	history History
	gen     Generator
}

// NewService creates an assistant Service.
func NewService(catalog Catalog, history History, gen Generator) *Service {
	return &Service{catalog: catalog, history: history, gen: gen}
}

// Ask answers question for the student.
func (s *Service) Ask(ctx context.Context, studentID, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, validation.Invalid("question", "is required")
	}

	var (
		restaurants []restaurant
		recent      []order.Order
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		restaurants, err = s.loadCatalog(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.history.RecentByStudent(gctx, studentID, HistoryLimit)
		if err != nil {
			return errors.Wrap(err, "load order history")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	text, err := s.gen.Generate(ctx, buildPrompt(restaurants, recent, question))
	if err != nil {
		return nil, errors.Wrap(err, "generate answer")
	}

	a := &Answer{Text: text}
	if v, ok := linkVendor(text, restaurants); ok {
		a.VendorID = v.ID
		a.VendorName = v.RestaurantName
	}
	return a, nil
}

func (s *Service) loadCatalog(ctx context.Context) ([]restaurant, error) {
	vendors, err := s.catalog.Browse(ctx, vendor.Filter{})
	if err != nil {
		return nil, errors.Wrap(err, "load vendors")
	}

	out := make([]restaurant, len(vendors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(menuConcurrency)
	for i, v := range vendors {
		out[i].vendor = v
		g.Go(func() error {
			menu, err := s.catalog.Menu(gctx, v.ID)
			if err != nil {
				return errors.Wrapf(err, "load menu of %s", v.ID)
			}
			out[i].menu = menu
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// buildPrompt renders the catalog, the order history and the question into
// a single prompt.
func buildPrompt(restaurants []restaurant, recent []order.Order, question string) string {
	var b strings.Builder
	b.WriteString("You are the food assistant of a university campus ordering app.\n\n")

	b.WriteString("RESTAURANTS:\n")
	for _, r := range restaurants {
		fmt.Fprintf(&b, "\n## %s\n", r.vendor.RestaurantName)
		if r.vendor.Description != "" {
			fmt.Fprintf(&b, "About: %s\n", r.vendor.Description)
		}
		if !r.vendor.IsActive {
			b.WriteString("Currently closed.\n")
		}
		b.WriteString("Menu:\n")
		for _, it := range r.menu {
			fmt.Fprintf(&b, "- %s (%s INR)\n", it.Name, it.Price.String())
		}
	}

	b.WriteString("\nRECENT ORDERS OF THIS STUDENT:\n")
	if len(recent) == 0 {
		b.WriteString("None yet.\n")
	}
	for _, o := range recent {
		names := make([]string, len(o.Items))
		for i, it := range o.Items {
			names[i] = it.Name
		}
		fmt.Fprintf(&b, "- %s: %s (%s)\n", o.VendorName, strings.Join(names, ", "), o.Status)
	}

	fmt.Fprintf(&b, "\nQUESTION: %q\n\n", question)
	b.WriteString("Guidelines:\n")
	b.WriteString("- For recommendations, favour places and dishes from the recent orders.\n")
	b.WriteString("- When asked for something new, suggest dishes not ordered before.\n")
	b.WriteString("- To explain ordering: pick a restaurant on the home screen, add items and check out.\n")
	b.WriteString("- Always write restaurant names exactly as listed.\n")
	b.WriteString("- Keep the reply short and friendly.\n")
	return b.String()
}

// linkVendor picks the vendor whose name appears in text, preferring the
// longest name so "Pizza Point Express" wins over "Pizza Point".
func linkVendor(text string, restaurants []restaurant) (vendor.Vendor, bool) {
	lower := strings.ToLower(text)
	var (
		best    vendor.Vendor
		bestLen int
	)
	for _, r := range restaurants {
		name := strings.ToLower(strings.TrimSpace(r.vendor.RestaurantName))
		if name == "" || !strings.Contains(lower, name) {
			continue
		}
		if len(name) > bestLen {
			best = r.vendor
			bestLen = len(name)
		}
	}
	return best, bestLen > 0
}
