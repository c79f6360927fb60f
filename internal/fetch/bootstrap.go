package fetch

import (
	"context"
	"fmt"

	"github.com/BadgerOps/wheelgap/internal/manifest"
	"github.com/BadgerOps/wheelgap/internal/pip"
)

// Bootstrap ensures the build-support packages (build back-end and native
// extension helpers) are present in the wheelhouse before user requirements
// are scheduled. It runs sequentially; any failure is fatal for the whole
// run since requirements that compile from source need a working toolchain.
func (s *Scheduler) Bootstrap(ctx context.Context, buildDeps []string) error {
	for _, name := range buildDeps {
		req := manifest.Requirement{Name: name, Raw: name}

		satisfied, err := s.wheelhouse.Satisfied(req, s.platforms)
		if err != nil {
			return fmt.Errorf("checking wheelhouse for %s: %w", name, err)
		}
		if satisfied {
			s.logger.Debug("build dependency already present", "package", name)
			continue
		}

		s.logger.Info("bootstrapping build dependency", "package", name)
		result := s.attempt(ctx, job{req: req})
		if result.Status == StatusFailed {
			return fmt.Errorf("build toolchain bootstrap failed for %s: %s",
				name, pip.DiagnosticExcerpt(result.Diagnostic, 1))
		}
	}
	return nil
}
