package modeldata

import (
	"fmt"
	"regexp"

	"github.com/redbco/mlregistry/internal/connector"
)

// Model and table addresses cannot be bound as parameters, so they are
// interpolated as quoted identifiers. Values are always bound.

func featureImportanceSQL(ref connector.ModelRef) string {
	return fmt.Sprintf("SELECT * FROM ML.FEATURE_IMPORTANCE(MODEL `%s`)", ref)
}

func trialInfoSQL(ref connector.ModelRef) string {
	return fmt.Sprintf(`SELECT
    trial_id, hyperparameters.*, hparam_tuning_evaluation_metrics.*,
    training_loss, eval_loss, status, error_message, is_optimal
FROM ML.TRIAL_INFO(MODEL `+"`%s`"+`)`, ref)
}

var regionPattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

func searchModelSQL(project, region string) (string, error) {
	if !regionPattern.MatchString(region) {
		return "", fmt.Errorf("%w: invalid region %q", connector.ErrInvalidConfiguration, region)
	}
	return fmt.Sprintf("SELECT query\n"+
		"FROM `%s.region-%s.INFORMATION_SCHEMA.JOBS_BY_PROJECT`\n"+
		"WHERE project_id = @project_id\n"+
		"    AND statement_type = \"CREATE_MODEL\"\n"+
		"    AND state = \"DONE\"\n"+
		"    AND destination_table.table_id = @model_id\n"+
		"    AND DATE(creation_time) = @limit_date\n"+
		"ORDER BY creation_time DESC\n"+
		"LIMIT 1", project, region), nil
}
