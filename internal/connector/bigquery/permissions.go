package bigquery

import (
	"context"
	"fmt"

	"github.com/redbco/mlregistry/internal/connector"
	crm "google.golang.org/api/cloudresourcemanager/v1"
	"google.golang.org/api/option"
)

// RequiredPermissions are the IAM permissions the registry needs on the project.
var RequiredPermissions = []string{
	"bigquery.datasets.create",
	"bigquery.datasets.get",
	"bigquery.datasets.getIamPolicy",
	"bigquery.models.getData",
	"bigquery.models.getMetadata",
	"bigquery.tables.create",
	"bigquery.tables.get",
	"bigquery.tables.getData",
	"bigquery.tables.updateData",
	"bigquery.jobs.create",
	"bigquery.jobs.listAll",
	"bigquery.readsessions.create",
	"bigquery.readsessions.getData",
}

// PermissionTester returns the subset of permissions granted on a project.
type PermissionTester interface {
	TestPermissions(ctx context.Context, projectID string, permissions []string) ([]string, error)
}

// PermissionTesterFunc adapts a function to PermissionTester.
type PermissionTesterFunc func(ctx context.Context, projectID string, permissions []string) ([]string, error)

// TestPermissions calls f.
func (f PermissionTesterFunc) TestPermissions(ctx context.Context, projectID string, permissions []string) ([]string, error) {
	return f(ctx, projectID, permissions)
}

type resourceManagerTester struct {
	svc *crm.Service
}

func newResourceManagerTester(ctx context.Context, opts []option.ClientOption) (*resourceManagerTester, error) {
	svc, err := crm.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource manager client: %w", err)
	}
	return &resourceManagerTester{svc: svc}, nil
}

// TestPermissions runs projects.testIamPermissions.
func (t *resourceManagerTester) TestPermissions(ctx context.Context, projectID string, permissions []string) ([]string, error) {
	resp, err := t.svc.Projects.TestIamPermissions(projectID, &crm.TestIamPermissionsRequest{
		Permissions: permissions,
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to test IAM permissions: %w", err)
	}
	return resp.Permissions, nil
}

// CheckPermissions fails with a *connector.PermissionError naming every
// required permission the project does not grant.
func CheckPermissions(ctx context.Context, tester PermissionTester, projectID string, required []string) error {
	granted, err := tester.TestPermissions(ctx, projectID, required)
	if err != nil {
		return err
	}
	return connector.NewPermissionError("projects/"+projectID, required, granted)
}
