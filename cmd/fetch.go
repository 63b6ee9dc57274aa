package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/product-copy/internal/product"
)

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <url>",
		Short: "Fetches one product page and prints the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, appInstance App) error {
			res := appInstance.FetchProduct(cmd.Context(), args[0])
			appInstance.Logger().Debug("fetch finished",
				zap.String("status", string(res.Status)),
				zap.String("code", string(res.Code)),
			)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			if res.Status != product.StatusSuccess {
				return fmt.Errorf("fetch failed: %s", res.Code)
			}
			return nil
		}),
	}
}
