package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/skyhaul/internal/server/models"
)

// TokenAdmin is implemented by tokenstore.Store.
type TokenAdmin interface {
	Family(ctx context.Context, familyID string) ([]models.RefreshToken, error)
	RevokeFamily(ctx context.Context, familyID string) (int64, error)
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
	DeleteOldTokens(ctx context.Context, expiredForDays, deactivatedForDays int) (int64, error)
}

type App struct {
	store           TokenAdmin
	out             io.Writer
	expiredDays     int
	deactivatedDays int
}

func NewApp(store TokenAdmin, out io.Writer, expiredDays, deactivatedDays int) *App {
	return &App{store: store, out: out, expiredDays: expiredDays, deactivatedDays: deactivatedDays}
}

func (a *App) Family(ctx context.Context, familyID string) error {
	tokens, err := a.store.Family(ctx, familyID)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		fmt.Fprintf(a.out, "family %s: no tokens\n", familyID)
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSER\tSTATUS\tCREATED\tEXPIRES\tDEACTIVATED")
	for _, t := range tokens {
		deactivated := "-"
		if t.DeactivatedAt != nil {
			deactivated = t.DeactivatedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.UserID, t.Status,
			t.CreatedAt.Format(time.RFC3339), t.ExpiresAt.Format(time.RFC3339), deactivated)
	}
	return w.Flush()
}

func (a *App) RevokeFamily(ctx context.Context, familyID string) error {
	n, err := a.store.RevokeFamily(ctx, familyID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "family %s: %d token(s) revoked\n", familyID, n)
	return nil
}

func (a *App) RevokeUser(ctx context.Context, userID string) error {
	n, err := a.store.RevokeAllForUser(ctx, userID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "user %s: %d token(s) revoked\n", userID, n)
	return nil
}

func (a *App) Sweep(ctx context.Context) error {
	n, err := a.store.DeleteOldTokens(ctx, a.expiredDays, a.deactivatedDays)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d token(s) deleted\n", n)
	return nil
}
