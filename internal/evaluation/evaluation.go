// Package evaluation evaluates one protocol template against observed data
// and publishes the outcome. The same code path serves the command line
// tool and the Temporal activity.
package evaluation

import (
	"log/slog"

	"github.com/protocolqc/protocolqc/internal/dataset"
	"github.com/protocolqc/protocolqc/internal/domain"
	"github.com/protocolqc/protocolqc/internal/matching"
	"github.com/protocolqc/protocolqc/internal/template"
)

// Evaluate builds the template in src and matches it against series. The
// returned protocol is never nil: a template that cannot be built comes
// back in the failed state together with the error.
func Evaluate(
	src template.Source,
	series []domain.DataSeries,
	minMatchScore float64,
	logger *slog.Logger,
) (*domain.ProtocolTemplate, error) {
	if logger == nil {
		logger = slog.Default().With("component", "evaluation")
	}
	patientID := dataset.PatientID(series)

	p, err := template.NewBuilder(minMatchScore, logger).BuildSource(src)
	if err != nil {
		logger.Error("template could not be built", "template", src.Name, "error", err)
		return &domain.ProtocolTemplate{
			Name:      src.Name,
			PatientID: patientID,
			State:     domain.StateFailed,
			Error:     err.Error(),
		}, err
	}
	p.PatientID = patientID

	if err := matching.NewEngine(logger).Evaluate(p, series); err != nil {
		return p, err
	}
	return p, nil
}
