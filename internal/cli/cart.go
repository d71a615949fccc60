package cli

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"storefront/internal/cart"
	"storefront/internal/models"
)

func (c *CLI) newCartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Inspect and change the shopping cart",
	}

	cmd.AddCommand(c.newCartListCmd())
	cmd.AddCommand(c.newCartAddCmd())
	cmd.AddCommand(c.newCartRemoveCmd())
	cmd.AddCommand(c.newCartUpdateCmd())
	cmd.AddCommand(c.newCartClearCmd())

	return cmd
}

func (c *CLI) newCartListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List cart lines and totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.printCart()
		},
	}
}

func (c *CLI) newCartAddCmd() *cobra.Command {
	var (
		name     string
		price    string
		quantity int
	)
	cmd := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product, or more of one already in the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := decimal.NewFromString(price)
			if err != nil {
				return fmt.Errorf("%w: price %q: %v", errBadInput, price, err)
			}
			product := models.Product{ID: args[0], Name: name, Price: p}
			if err := c.app.Cart.Add(cmd.Context(), product, quantity); err != nil {
				return err
			}
			return c.printCart()
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "product name")
	cmd.Flags().StringVar(&price, "price", "0", "unit price")
	cmd.Flags().IntVar(&quantity, "qty", 1, "quantity to add")
	return cmd
}

func (c *CLI) newCartRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a product from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Cart.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			return c.printCart()
		},
	}
}

func (c *CLI) newCartUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <product-id> <quantity>",
		Short: "Set a product's quantity; zero removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("%w: quantity %q", errBadInput, args[1])
			}
			if err := c.app.Cart.UpdateQuantity(cmd.Context(), args[0], qty); err != nil {
				return err
			}
			return c.printCart()
		},
	}
}

func (c *CLI) newCartClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Cart.Clear(cmd.Context()); err != nil {
				return err
			}
			return c.printCart()
		},
	}
}

type cartView struct {
	Items     []models.LineItem `json:"items"`
	ItemCount int               `json:"itemCount"`
	Subtotal  decimal.Decimal   `json:"subtotal"`
}

func (c *CLI) printCart() error {
	items := c.app.Cart.Items()
	view := cartView{
		Items:     items,
		ItemCount: cart.TotalItemCount(items),
		Subtotal:  cart.Subtotal(items),
	}

	if c.jsonOutput {
		return c.printJSON(view)
	}

	if len(items) == 0 {
		c.printf("Cart is empty\n")
		return nil
	}

	w := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PRODUCT\tNAME\tQTY\tPRICE\tTOTAL")
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			item.ProductID, item.Name, item.Quantity,
			item.Price.StringFixed(2), item.LineTotal().StringFixed(2))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	c.printf("%d item(s), subtotal %s\n", view.ItemCount, view.Subtotal.StringFixed(2))
	return nil
}

var errBadInput = errors.New("invalid input")

func isCartInputError(err error) bool {
	return errors.Is(err, errBadInput) ||
		errors.Is(err, cart.ErrInvalidQuantity) ||
		errors.Is(err, cart.ErrInvalidProduct) ||
		errors.Is(err, cart.ErrNotFound)
}
