// pricecheck prints current prices for a set of SKUs.
//
//	pricecheck -skus "5002;6,5021;6" [-host https://api.prices.tf]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Nicklason/tf2-automatic-sub001/internal/pricing"
)

func main() {
	host := flag.String("host", "", "pricing service host (default "+pricing.DefaultURL+")")
	skusArg := flag.String("skus", "", "comma-separated SKUs to look up")
	timeout := flag.Duration("timeout", 30*time.Second, "overall request timeout")
	flag.Parse()

	var skus []string
	for _, s := range strings.Split(*skusArg, ",") {
		if s = strings.TrimSpace(s); s != "" {
			skus = append(skus, s)
		}
	}
	if len(skus) == 0 {
		log.Fatalf("[fatal] -skus required (e.g. -skus \"5002;6,5021;6\")")
	}

	client, err := pricing.NewClient(*host)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"SKU", "Name", "Buy", "Sell", "Updated"})

	for _, sku := range skus {
		p, err := client.GetPrice(ctx, sku)
		if err != nil {
			log.Printf("[warn] %s: %v", sku, err)
			t.AppendRow(table.Row{sku, "-", "-", "-", "-"})
			continue
		}
		t.AppendRow(table.Row{
			p.SKU,
			p.Name,
			formatCurrencies(p.Buy),
			formatCurrencies(p.Sell),
			p.UpdatedAt.Format(time.RFC3339),
		})
	}

	t.Render()
}

func formatCurrencies(c pricing.Currencies) string {
	if c.Keys == 0 {
		return fmt.Sprintf("%.2f ref", c.Metal)
	}
	return fmt.Sprintf("%d keys, %.2f ref", c.Keys, c.Metal)
}
