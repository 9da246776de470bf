package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-hangar/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-hangar/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-hangar/pkg/logging"
	"github.com/ekaya-inc/ekaya-hangar/pkg/models"
	hangarsql "github.com/ekaya-inc/ekaya-hangar/pkg/sql"
)

// QueryRunner renders query definitions and runs them against their database.
type QueryRunner interface {
	// Render returns the normalized SQL a query would send for params.
	Render(def *models.QueryDefinition, params map[string]any) (string, error)

	// Run renders and executes a query. With returnOne, a result without
	// rows is ErrNoRows and only the first row is kept.
	Run(ctx context.Context, def *models.QueryDefinition, returnOne bool, params map[string]any) (*models.ExecutionResult, error)
}

// QueryRunnerOptions are the guards applied around rendering.
type QueryRunnerOptions struct {
	// ScreenInjection rejects string parameters that libinjection flags.
	ScreenInjection bool
	// SingleStatement rejects rendered SQL containing more than one statement.
	SingleStatement bool
}

type queryRunner struct {
	datasourceSvc  DatasourceService
	adapterFactory datasource.DatasourceAdapterFactory
	opts           QueryRunnerOptions
	logger         *zap.Logger
}

// NewQueryRunner creates a query runner.
func NewQueryRunner(
	datasourceSvc DatasourceService,
	adapterFactory datasource.DatasourceAdapterFactory,
	opts QueryRunnerOptions,
	logger *zap.Logger,
) QueryRunner {
	return &queryRunner{
		datasourceSvc:  datasourceSvc,
		adapterFactory: adapterFactory,
		opts:           opts,
		logger:         logger.Named("query"),
	}
}

func (r *queryRunner) Render(def *models.QueryDefinition, params map[string]any) (string, error) {
	if r.opts.ScreenInjection {
		if flagged := hangarsql.CheckAllParameters(params); len(flagged) > 0 {
			r.logger.Warn("Rejected parameter flagged as SQL injection",
				zap.String("query", def.Name),
				zap.String("param", flagged[0].ParamName),
				zap.String("fingerprint", flagged[0].Fingerprint))
			return "", fmt.Errorf("%w in parameter %s", apperrors.ErrInjectionDetected, flagged[0].ParamName)
		}
	}

	rendered, err := hangarsql.RenderSQL(def, params)
	if err != nil {
		return "", err
	}
	rendered = hangarsql.NormalizeSQL(rendered)

	if r.opts.SingleStatement {
		rendered, err = hangarsql.RequireSingleStatement(rendered)
		if err != nil {
			return "", fmt.Errorf("query %q: %w", def.Name, err)
		}
	}
	return rendered, nil
}

func (r *queryRunner) Run(ctx context.Context, def *models.QueryDefinition, returnOne bool, params map[string]any) (*models.ExecutionResult, error) {
	rendered, err := r.Render(def, params)
	if err != nil {
		return nil, err
	}

	ds, err := r.datasourceSvc.Get(def.Database)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", def.Name, err)
	}

	executor, err := r.adapterFactory.NewQueryExecutor(ctx, ds)
	if err != nil {
		return nil, fmt.Errorf("failed to create query executor: %w", err)
	}
	defer executor.Close()

	start := time.Now()
	result, err := executor.Query(ctx, rendered)
	if err != nil {
		r.logger.Error("Query execution failed",
			zap.String("query", def.Name),
			zap.String("database", def.Database),
			zap.String("sql", logging.SanitizeQuery(rendered)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("query %q: %w", def.Name, err)
	}

	r.logger.Debug("Query executed",
		zap.String("query", def.Name),
		zap.String("database", def.Database),
		zap.String("sql", logging.SanitizeQuery(rendered)),
		zap.Int("rows", result.RowCount),
		zap.Duration("elapsed", time.Since(start)))

	rows := result.Rows
	if returnOne {
		if len(rows) == 0 {
			return nil, fmt.Errorf("query %q: %w", def.Name, apperrors.ErrNoRows)
		}
		rows = rows[:1]
	}

	return &models.ExecutionResult{
		SQL:  rendered,
		Rows: rows,
		One:  returnOne,
	}, nil
}

// IsClientError reports whether err was caused by the request rather than
// by the server or a database: bad parameters, templates that cannot render
// with them, or values rejected by the guards.
func IsClientError(err error) bool {
	return errors.Is(err, apperrors.ErrMissingParameter) ||
		errors.Is(err, apperrors.ErrParameterType) ||
		errors.Is(err, apperrors.ErrInjectionDetected) ||
		errors.Is(err, apperrors.ErrMultipleStatements)
}

var _ QueryRunner = (*queryRunner)(nil)
