package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-vigil/infrastructure/signals"
	"github.com/ahrav/go-vigil/internal/application"
	"github.com/ahrav/go-vigil/internal/domain"
)

var scoreFlags struct {
	prompt     string
	response   string
	confidence float64
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a prompt/response pair without calling a model",
	Long: `Score a prompt/response pair offline and print the risk breakdown as JSON.

Without --confidence the response is searched for an inline rating such as
"Confidence: 0.8"; if none is found the neutral default is used.

Examples:
  vigil score --prompt "What is AI?" --response "$(cat answer.txt)" --confidence 0.6
  vigil score --config vigil.yaml --prompt "..." --response "..."`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := application.LoadEvaluationConfig(configFile)
		if err != nil {
			return err
		}
		var elicitor signals.ConfidenceElicitor = signals.InlineElicitor{}
		if cmd.Flags().Changed("confidence") {
			elicitor = signals.StaticElicitor(scoreFlags.confidence)
		}
		return runScore(cmd.Context(), cmd.OutOrStdout(), cfg, elicitor, scoreFlags.prompt, scoreFlags.response)
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().StringVarP(&scoreFlags.prompt, "prompt", "p", "", "prompt text (required)")
	scoreCmd.Flags().StringVarP(&scoreFlags.response, "response", "r", "", "response text; - reads stdin")
	scoreCmd.Flags().Float64Var(&scoreFlags.confidence, "confidence", 0, "self-confidence in [0,1]")
	_ = scoreCmd.MarkFlagRequired("prompt")
}

// scoreReport is the JSON printed by the score command.
type scoreReport struct {
	PromptHash            string  `json:"prompt_hash"`
	SelfConfidence        float64 `json:"self_confidence"`
	ConfidenceUnavailable bool    `json:"confidence_unavailable"`
	HedgingScore          float64 `json:"hedging_score"`
	VerbosityScore        float64 `json:"verbosity_score"`
	VerbosityRatio        float64 `json:"verbosity_ratio"`
	RiskScore             float64 `json:"hallucination_risk"`
	RiskTier              string  `json:"risk_tier"`
	AnswerLength          int     `json:"answer_length"`
}

func runScore(ctx context.Context, w io.Writer, cfg application.EvaluationConfig, elicitor signals.ConfidenceElicitor, prompt, response string) error {
	if response == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read response from stdin: %w", err)
		}
		response = string(b)
	}

	evaluator, err := application.NewEvaluator(cfg, elicitor, nil)
	if err != nil {
		return err
	}
	r, err := evaluator.Evaluate(ctx, domain.EvaluationInput{Prompt: prompt, Response: response})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(scoreReport{
		PromptHash:            r.PromptHash,
		SelfConfidence:        r.SelfConfidence,
		ConfidenceUnavailable: r.ConfidenceUnavailable,
		HedgingScore:          r.HedgingScore,
		VerbosityScore:        r.VerbosityScore,
		VerbosityRatio:        r.VerbosityRatio,
		RiskScore:             r.RiskScore,
		RiskTier:              r.Tier.String(),
		AnswerLength:          r.AnswerLength,
	})
}
