package device

import (
	"context"
	"errors"

	"github.com/jmcleod/firmgate/seed"
	"github.com/jmcleod/firmgate/session"
	"github.com/jmcleod/firmgate/wire"

	"github.com/jmcleod/firmgate/internal/util"
)

// sessionSeed returns the active session's seed, deriving and caching it
// on first use. Derivation may suspend for a passphrase prompt when
// passphrase protection is enabled; the derivation variant is whatever the
// session recorded before the seed existed. Callers wipe the returned
// copy.
func (sc *SecurityContext) sessionSeed(ctx context.Context, c *wire.Context) ([]byte, error) {
	s, err := sc.sessions.Seed()
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, session.ErrSeedNotSet) {
		return nil, err
	}

	cfg := sc.config()
	if cfg == nil || !cfg.Initialized {
		return nil, wire.ErrNotInitialized
	}

	passphrase := ""
	if cfg.PassphraseProtection {
		passphrase, err = c.PromptPassphrase(ctx)
		if err != nil {
			return nil, err
		}
	}

	deriveCardano, _, err := sc.sessions.DeriveCardano()
	if err != nil {
		return nil, err
	}

	s, err = seed.FromEntropy(cfg.Entropy, passphrase, deriveCardano)
	if err != nil {
		return nil, err
	}
	// SetSeed takes ownership of its argument and wipes it.
	if err := sc.sessions.SetSeed(util.CopyBytes(s)); err != nil {
		util.WipeBytes(s)
		return nil, err
	}
	return s, nil
}
