package main

import (
	"fmt"
	"io"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/xenking/storefront-checkout/internal/domain/catalog"
)

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the product catalog",
	}

	check := &cobra.Command{
		Use:   "check",
		Short: "Load the catalog file and report products per collection",
		Long: `Load the catalog with the same loader as the API server.

Prints the number of products in every collection and lists products whose
category maps to no collection. Those products can never be purchased.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("file")
			store, err := catalog.Load(path)
			if err != nil {
				return errors.Wrap(err, "load catalog")
			}
			return reportCatalog(cmd.OutOrStdout(), store.List())
		},
	}
	check.Flags().StringP("file", "f", "data/products.json", "Catalog JSON file")

	cmd.AddCommand(check)
	return cmd
}

func reportCatalog(w io.Writer, products []catalog.Product) error {
	counts := make(map[string]int)
	var unmapped []catalog.Product
	for _, p := range products {
		if p.Collection == "" {
			unmapped = append(unmapped, p)
			continue
		}
		counts[p.Collection]++
	}

	if _, err := fmt.Fprintf(w, "%d products\n", len(products)); err != nil {
		return err
	}
	for _, c := range catalog.Collections() {
		state := "open"
		if !c.Purchasable {
			state = "closed"
		}
		if _, err := fmt.Fprintf(w, "  %-12s %4d  %s\n", c.Name, counts[c.Name], state); err != nil {
			return err
		}
	}
	if len(unmapped) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "%d products without a collection:\n", len(unmapped)); err != nil {
		return err
	}
	for _, p := range unmapped {
		if _, err := fmt.Fprintf(w, "  %s (%s) category %q\n", p.ID, p.Name, p.Category); err != nil {
			return err
		}
	}
	return nil
}
