package usecase

import (
	"strings"

	"github.com/minhokang/evidence-engine/internal/config"
	"github.com/minhokang/evidence-engine/internal/core/domain"
)

// Hygiene filters planner output: empties are dropped, near-duplicates
// collapse on token Jaccard similarity, and the list is capped per domain.
// GENERAL queries tolerate looser similarity than vertical ones, which get
// a tighter cap and only merge near-identical strings.
type Hygiene struct {
	cfg config.PlannerConfig
}

func NewHygiene(cfg config.PlannerConfig) *Hygiene {
	if cfg.GeneralCap <= 0 {
		cfg.GeneralCap = 6
	}
	if cfg.GeneralJaccard <= 0 {
		cfg.GeneralJaccard = 0.60
	}
	if cfg.VerticalCap <= 0 {
		cfg.VerticalCap = 4
	}
	if cfg.VerticalJaccard <= 0 {
		cfg.VerticalJaccard = 0.80
	}
	return &Hygiene{cfg: cfg}
}

func (h *Hygiene) capFor(domainLabel string) (int, float64) {
	if domainLabel == domain.DomainGeneral || domainLabel == "" {
		return h.cfg.GeneralCap, h.cfg.GeneralJaccard
	}
	return h.cfg.VerticalCap, h.cfg.VerticalJaccard
}

// Sanitize drops empty and near-duplicate queries and caps the list.
// Earlier queries win: a later query is dropped when its token Jaccard
// similarity to any kept query reaches the domain threshold.
func (h *Hygiene) Sanitize(queries []string, domainLabel string) []string {
	limit, threshold := h.capFor(domainLabel)
	kept := make([]string, 0, limit)
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		dup := false
		for _, prev := range kept {
			if tokenJaccard(prev, q) >= threshold {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		kept = append(kept, q)
		if len(kept) >= limit {
			break
		}
	}
	return kept
}

// SanitizeAnchored is Sanitize plus subject anchoring: every returned
// query contains the anchor subject, prefixed when missing. An empty
// subject anchors nothing.
func (h *Hygiene) SanitizeAnchored(queries []string, subject, domainLabel string) []string {
	subject = strings.TrimSpace(subject)
	kept := h.Sanitize(queries, domainLabel)
	if subject == "" {
		return kept
	}
	lowerSubject := strings.ToLower(subject)
	out := make([]string, 0, len(kept))
	for _, q := range kept {
		if !strings.Contains(strings.ToLower(q), lowerSubject) {
			q = subject + " " + q
		}
		out = append(out, q)
	}
	// anchoring can re-introduce duplicates
	return h.Sanitize(out, domainLabel)
}
