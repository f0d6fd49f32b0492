package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/onurdev/diagnosys/internal/core/domain"
	"github.com/onurdev/diagnosys/internal/core/ports"
)

// Prospectus section headings as they appear in Turkish drug leaflets.
var (
	activeSubstanceRe = regexp.MustCompile(`(?is)etkin madde[:\s]+(.*?)(?:\n\s*\n|yard[ıi]mc[ıi] madde|$)`)
	interactionsRe    = regexp.MustCompile(`(?is)di[ğg]er ila[çc]lar(?:la| ile) birlikte kullan[ıi]m[ıi][:\s]+(.*?)(?:\n\s*\n|$)`)
)

// AnalyzeUseCase builds a drug interaction report: prospectus texts from the
// lookup service, relevant sections cut out, and the analyzer model asked for
// a markdown assessment.
type AnalyzeUseCase struct {
	fetcher  ports.ProspectusFetcher
	profiles ports.ProfileStore
	registry ports.ClientRegistry
	logger   *slog.Logger
}

func NewAnalyzeUseCase(
	fetcher ports.ProspectusFetcher,
	profiles ports.ProfileStore,
	registry ports.ClientRegistry,
	logger *slog.Logger,
) *AnalyzeUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyzeUseCase{
		fetcher:  fetcher,
		profiles: profiles,
		registry: registry,
		logger:   logger,
	}
}

func (uc *AnalyzeUseCase) AnalyzeInteractions(ctx context.Context, userID string, drugNames []string) (string, error) {
	if len(drugNames) == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, "analyze interactions", errors.New("no drug names given"))
	}

	prospectuses, err := uc.fetcher.Fetch(ctx, drugNames)
	if err != nil {
		return "", fmt.Errorf("fetch prospectuses: %w", err)
	}
	if len(prospectuses) == 0 {
		return "", domain.WrapError(domain.ErrNotFound, "analyze interactions",
			fmt.Errorf("no prospectus found for %v", drugNames))
	}

	input := uc.buildAnalysisPrompt(ctx, userID, drugNames, prospectuses)

	client, err := uc.registry.Get(domain.RoleAnalyzer)
	if err != nil {
		return "", err
	}

	uc.logger.Info("interaction_analysis_started",
		"user_id", userID,
		"drugs", len(drugNames),
		"prospectuses", len(prospectuses),
		"model", client.Model(),
	)

	report, err := client.Generate(ctx, input)
	if err != nil {
		return "", fmt.Errorf("generate interaction analysis: %w", err)
	}
	return report, nil
}

func (uc *AnalyzeUseCase) buildAnalysisPrompt(ctx context.Context, userID string, drugNames []string, prospectuses map[string]string) string {
	var b strings.Builder
	b.WriteString("You are a clinical pharmacology assistant. Using only the prospectus excerpts below, ")
	b.WriteString("assess interactions between the listed drugs. Answer in markdown with a short verdict per pair.\n")

	if allergies := uc.allergyList(ctx, userID); len(allergies) > 0 {
		b.WriteString("\nPatient allergies: ")
		b.WriteString(strings.Join(allergies, ", "))
		b.WriteString("\n")
	}

	for _, name := range drugNames {
		text, ok := prospectuses[name]
		if !ok {
			b.WriteString(fmt.Sprintf("\n## %s\nProspectus not found.\n", name))
			continue
		}
		b.WriteString(fmt.Sprintf("\n## %s\n", name))
		b.WriteString("**Active substance:** ")
		b.WriteString(extractSection(activeSubstanceRe, text))
		b.WriteString("\n**Use with other drugs:** ")
		b.WriteString(extractSection(interactionsRe, text))
		b.WriteString("\n")
	}
	return b.String()
}

func (uc *AnalyzeUseCase) allergyList(ctx context.Context, userID string) []string {
	if userID == "" || uc.profiles == nil {
		return nil
	}
	profile, err := uc.profiles.Get(ctx, userID)
	if err != nil {
		if !domain.IsKind(err, domain.ErrNotFound) {
			uc.logger.Warn("profile_lookup_failed", "user_id", userID, "error", err)
		}
		return nil
	}
	return profile.Allergies
}

func extractSection(re *regexp.Regexp, text string) string {
	match := re.FindStringSubmatch(text)
	if len(match) < 2 {
		return "not stated"
	}
	section := strings.Join(strings.Fields(match[1]), " ")
	if section == "" {
		return "not stated"
	}
	return section
}
