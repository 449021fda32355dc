package core

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// BuildContextPayload assembles the generation context for a role.
//
// The payload always contains four zones in order: system, evidence,
// recent, task. Every zone is structurally present; zones without content
// carry an explicit marker, so a downstream template never sees a missing
// section. A retrieval failure degrades the evidence zone to an unavailable
// marker instead of failing the whole payload.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - role: The role the payload is built for
//   - task: The current task or question; it is the task zone content and,
//     unless WithEvidenceQuery overrides it, the evidence retrieval query
//   - opts: Optional parameters (system text, evidence query/top-k, opt-outs)
//
// Returns the assembled payload.
func (m *Manager) BuildContextPayload(ctx context.Context, role, task string, opts ...ContextOption) (*ContextPayload, error) {
	if role == "" {
		return nil, NewMemoryError("BuildContextPayload", ErrInvalidInput)
	}

	options := m.applyContextOptions(opts)

	payload := &ContextPayload{
		SessionID: m.sessionID,
		Role:      role,
	}

	payload.appendZone(ZoneSystem, m.systemZoneContent(role, options))
	payload.appendZone(ZoneEvidence, m.evidenceZoneContent(ctx, role, task, options))
	payload.appendZone(ZoneRecent, m.recentZoneContent(options))
	payload.appendZone(ZoneTask, taskZoneContent(task))

	return payload, nil
}

// BuildRoleReversalContext assembles a payload for a role switching sides.
//
// It is a standard context payload with one extra zone directly after the
// system zone: prior_commitments, carrying the previous role's full history
// so the agent can argue against its own earlier positions. The history is
// bounded by WithMaxReversalTurns (default 20), keeping the most recent
// turns when truncating.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - newRole: The role the agent is switching to
//   - previousRole: The role whose history becomes prior commitments
//   - task: The current task or question
//   - opts: Optional parameters
//
// Returns the assembled payload.
func (m *Manager) BuildRoleReversalContext(ctx context.Context, newRole, previousRole, task string, opts ...ContextOption) (*ContextPayload, error) {
	if newRole == "" || previousRole == "" {
		return nil, NewMemoryError("BuildRoleReversalContext", ErrInvalidInput)
	}

	options := m.applyContextOptions(opts)

	payload := &ContextPayload{
		SessionID: m.sessionID,
		Role:      newRole,
	}

	payload.appendZone(ZoneSystem, m.systemZoneContent(newRole, options))
	payload.appendZone(ZonePriorCommitments, m.priorCommitmentsContent(ctx, previousRole, options))
	payload.appendZone(ZoneEvidence, m.evidenceZoneContent(ctx, newRole, task, options))
	payload.appendZone(ZoneRecent, m.recentZoneContent(options))
	payload.appendZone(ZoneTask, taskZoneContent(task))

	return payload, nil
}

// appendZone adds a zone and accumulates the token estimate.
func (p *ContextPayload) appendZone(name, content string) {
	estimate := EstimateTokens(content)
	p.Zones = append(p.Zones, ContextZone{
		Name:          name,
		Content:       content,
		TokenEstimate: estimate,
	})
	p.TotalTokenEstimate += estimate
}

// systemZoneContent renders the system zone.
func (m *Manager) systemZoneContent(role string, options *ContextOptions) string {
	if options.SystemText != "" {
		return options.SystemText
	}

	if m.topic != "" {
		return fmt.Sprintf("You are the %s in a structured debate on: %s. Ground your arguments in the evidence provided below.", role, m.topic)
	}
	return fmt.Sprintf("You are the %s in a structured debate. Ground your arguments in the evidence provided below.", role)
}

// evidenceZoneContent retrieves and renders the evidence zone. Read-path
// failures degrade to an unavailable marker; they never fail the payload.
func (m *Manager) evidenceZoneContent(ctx context.Context, role, task string, options *ContextOptions) string {
	if options.SkipEvidence {
		return MarkerNotRequested
	}
	query := options.EvidenceQuery
	if query == "" {
		query = task
	}
	if strings.TrimSpace(query) == "" {
		return MarkerNoEvidence
	}

	results, err := m.SearchMemories(ctx, query, WithTopK(options.EvidenceTopK))
	if err != nil {
		m.logger.Warn("evidence retrieval failed, degrading zone",
			zap.String("role", role),
			zap.Error(err))
		return MarkerUnavailable
	}
	if len(results) == 0 {
		return MarkerNoEvidence
	}

	var b strings.Builder
	for i, res := range results {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%d] (%s, turn %d, score %.2f) %s",
			res.Rank, res.Record.Role, res.Record.TurnIndex, res.Score, res.Record.Text)
	}
	return b.String()
}

// recentZoneContent renders the short-term window.
func (m *Manager) recentZoneContent(options *ContextOptions) string {
	if options.SkipRecent {
		return MarkerNotRequested
	}
	rendered := m.window.Render()
	if rendered == "" {
		return MarkerEmpty
	}
	return rendered
}

// taskZoneContent renders the task zone.
func taskZoneContent(task string) string {
	if strings.TrimSpace(task) == "" {
		return MarkerEmpty
	}
	return task
}

// priorCommitmentsContent renders the previous role's history for a role
// reversal payload.
func (m *Manager) priorCommitmentsContent(ctx context.Context, previousRole string, options *ContextOptions) string {
	history, err := m.GetRoleHistory(ctx, previousRole)
	if err != nil {
		m.logger.Warn("prior commitments retrieval failed, degrading zone",
			zap.String("previous_role", previousRole),
			zap.Error(err))
		return MarkerUnavailable
	}
	if len(history) == 0 {
		return MarkerEmpty
	}

	// Bound the zone, keeping the most recent commitments.
	if options.MaxReversalTurns > 0 && len(history) > options.MaxReversalTurns {
		history = history[len(history)-options.MaxReversalTurns:]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Your previous statements as %s:", previousRole)
	for _, rec := range history {
		fmt.Fprintf(&b, "\n[turn %d] %s", rec.TurnIndex, rec.Text)
	}
	return b.String()
}
