package horizons

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dylan7474/planetaryLogger/internal/elements"
	"github.com/dylan7474/planetaryLogger/internal/metrics"
)

// fetchConcurrency caps in-flight element requests.
const fetchConcurrency = 3

// Provider produces element sets from Horizons, consulting an optional
// on-disk cache first.
type Provider struct {
	client *Client
	cache  *Cache
	logger *slog.Logger
}

// NewProvider creates a Provider. cache may be nil.
func NewProvider(client *Client, cache *Cache, logger *slog.Logger) *Provider {
	return &Provider{client: client, cache: cache, logger: logger}
}

// FetchElements returns the heliocentric elements of one body at epoch.
func (p *Provider) FetchElements(ctx context.Context, ref BodyRef, epoch time.Time) (elements.OrbitalElements, error) {
	key := ElementsKey(ref.ID, epoch)

	if p.cache != nil {
		result, ok, err := p.cache.Load(key)
		if err != nil {
			p.logger.Warn("element cache read failed", "body", ref.Name, "error", err)
		}
		if ok {
			el, err := ParseElements(result, epoch)
			if err == nil {
				metrics.RecordHorizonsRequest("cached", 0)
				p.logger.Debug("elements loaded from cache", "body", ref.Name, "key", key)
				return el, nil
			}
			p.logger.Warn("discarding unparseable cached elements", "body", ref.Name, "error", err)
		}
	}

	result, err := p.client.Query(ctx, ElementsParams(ref.ID, epoch))
	if err != nil {
		return elements.OrbitalElements{}, fmt.Errorf("elements for %s: %w", ref.Name, err)
	}
	el, err := ParseElements(result, epoch)
	if err != nil {
		return elements.OrbitalElements{}, fmt.Errorf("elements for %s: %w", ref.Name, err)
	}

	if p.cache != nil {
		if err := p.cache.Write(key, result); err != nil {
			p.logger.Warn("element cache write failed", "body", ref.Name, "error", err)
		}
	}
	return el, nil
}

// FetchSet fetches elements for every body at epoch. Any single failure
// aborts the whole set: the simulator has no fallback for missing elements.
// Bodies keep the order of refs.
func (p *Provider) FetchSet(ctx context.Context, refs []BodyRef, epoch time.Time) (*elements.Set, error) {
	bodies := make([]elements.Body, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, ref := range refs {
		g.Go(func() error {
			el, err := p.FetchElements(gctx, ref, epoch)
			if err != nil {
				return err
			}
			bodies[i] = elements.Body{Name: ref.Name, ID: ref.ID, Elements: el}
			p.logger.Info("elements fetched",
				"body", ref.Name,
				"epoch", el.Epoch.Format(time.RFC3339),
				"a_au", el.SemiMajorAxisAU,
				"e", el.Eccentricity,
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &elements.Set{
		Source:    p.client.BaseURL(),
		FetchedAt: time.Now(),
		Bodies:    bodies,
	}, nil
}

// FetchLongitude returns the geocentric ecliptic longitude of a body on date,
// taken from a Horizons state vector.
func (p *Provider) FetchLongitude(ctx context.Context, ref BodyRef, date time.Time) (float64, error) {
	result, err := p.client.Query(ctx, VectorsParams(ref.ID, date))
	if err != nil {
		return 0, fmt.Errorf("vectors for %s: %w", ref.Name, err)
	}
	lon, err := ParseVectorLongitude(result)
	if err != nil {
		return 0, fmt.Errorf("vectors for %s: %w", ref.Name, err)
	}
	return lon, nil
}
