// Package rest implements directory.Client against the corporate directory's
// JSON API.
//
// Membership endpoints normalize the remote's "already a member" (409) and
// "not a member" (404) responses to success, upholding the package-level
// idempotency contract.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"provisor/internal/directory"
	"provisor/internal/platform/config"
	id "provisor/pkg/domain"
	dErrors "provisor/pkg/domain-errors"
	"provisor/pkg/platform/sentinel"
)

// Client talks to the remote directory API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ directory.Client = (*Client)(nil)

// New creates a directory client from config. The call timeout applies to
// every request.
func New(cfg config.DirectoryConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.BearerToken,
		http:    &http.Client{Timeout: cfg.CallTimeout},
	}
}

type identityResponse struct {
	ID            string `json:"id"`
	PrincipalName string `json:"principalName"`
	DisplayName   string `json:"displayName"`
	Department    string `json:"department"`
	JobTitle      string `json:"jobTitle"`
	UsageLocation string `json:"usageLocation"`
	EmployeeID    string `json:"employeeId"`
	ManagerID     string `json:"managerId"`
	Enabled       bool   `json:"accountEnabled"`
}

func (r identityResponse) toDomain() *directory.Identity {
	return &directory.Identity{
		ID:            r.ID,
		PrincipalName: r.PrincipalName,
		DisplayName:   r.DisplayName,
		Department:    r.Department,
		JobTitle:      r.JobTitle,
		UsageLocation: r.UsageLocation,
		EmployeeID:    id.EmployeeID(r.EmployeeID),
		ManagerID:     r.ManagerID,
		Enabled:       r.Enabled,
	}
}

// FindByEmployeeID resolves an HR employee identifier to an identity.
func (c *Client) FindByEmployeeID(ctx context.Context, employeeID id.EmployeeID) (*directory.Identity, error) {
	var resp identityResponse
	path := "/v1/identities/by-employee/" + url.PathEscape(employeeID.String())
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.toDomain(), nil
}

// CreateIdentity provisions a new account.
func (c *Client) CreateIdentity(ctx context.Context, profile directory.CreateProfile) (*directory.IdentityCreated, error) {
	body := map[string]any{
		"displayName":         profile.DisplayName,
		"principalName":       profile.PrincipalName,
		"department":          profile.Department,
		"jobTitle":            profile.JobTitle,
		"usageLocation":       profile.UsageLocation,
		"employeeId":          profile.EmployeeID.String(),
		"password":            profile.Password,
		"forcePasswordChange": profile.ForcePasswordChange,
	}
	if profile.ManagerID != "" {
		body["managerId"] = profile.ManagerID
	}

	var resp struct {
		ID            string `json:"id"`
		PrincipalName string `json:"principalName"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/identities", body, &resp); err != nil {
		return nil, err
	}
	return &directory.IdentityCreated{ID: resp.ID, PrincipalName: resp.PrincipalName}, nil
}

// DisableIdentity blocks sign-in for the identity.
func (c *Client) DisableIdentity(ctx context.Context, identityID string) error {
	return c.do(ctx, http.MethodPost, identityPath(identityID)+"/disable", nil, nil)
}

// EnableIdentity restores sign-in for the identity.
func (c *Client) EnableIdentity(ctx context.Context, identityID string) error {
	return c.do(ctx, http.MethodPost, identityPath(identityID)+"/enable", nil, nil)
}

// RevokeSessions invalidates all active sessions for the identity.
func (c *Client) RevokeSessions(ctx context.Context, identityID string) error {
	return c.do(ctx, http.MethodPost, identityPath(identityID)+"/revoke-sessions", nil, nil)
}

// UpdateIdentity applies a sparse profile patch.
func (c *Client) UpdateIdentity(ctx context.Context, identityID string, patch directory.ProfilePatch) error {
	body := map[string]any{}
	if patch.DisplayName != nil {
		body["displayName"] = *patch.DisplayName
	}
	if patch.Department != nil {
		body["department"] = *patch.Department
	}
	if patch.JobTitle != nil {
		body["jobTitle"] = *patch.JobTitle
	}
	if patch.UsageLocation != nil {
		body["usageLocation"] = *patch.UsageLocation
	}
	if patch.ManagerID != nil {
		body["managerId"] = *patch.ManagerID
	}
	if len(body) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPatch, identityPath(identityID), body, nil)
}

// AssignLicenses adds the given licenses to the identity.
func (c *Client) AssignLicenses(ctx context.Context, identityID string, licenseIDs []string) error {
	body := map[string]any{"licenseIds": licenseIDs}
	return c.do(ctx, http.MethodPost, identityPath(identityID)+"/licenses", body, nil)
}

// RemoveLicenses removes the given licenses from the identity.
func (c *Client) RemoveLicenses(ctx context.Context, identityID string, licenseIDs []string) error {
	body := map[string]any{"licenseIds": licenseIDs}
	return c.do(ctx, http.MethodPost, identityPath(identityID)+"/licenses/remove", body, nil)
}

// AddToGroup adds the identity to a group; already-a-member is success.
func (c *Client) AddToGroup(ctx context.Context, identityID, groupID string) error {
	body := map[string]any{"identityId": identityID}
	err := c.do(ctx, http.MethodPost, "/v1/groups/"+url.PathEscape(groupID)+"/members", body, nil)
	return squashMembershipConflict(err)
}

// RemoveFromGroup removes the identity from a group; not-a-member is success.
func (c *Client) RemoveFromGroup(ctx context.Context, identityID, groupID string) error {
	path := "/v1/groups/" + url.PathEscape(groupID) + "/members/" + url.PathEscape(identityID)
	err := c.do(ctx, http.MethodDelete, path, nil, nil)
	return squashMembershipMissing(err)
}

// ListGroups returns the identity's current group memberships.
func (c *Client) ListGroups(ctx context.Context, identityID string) ([]directory.GroupRef, error) {
	var resp struct {
		Groups []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"groups"`
	}
	if err := c.do(ctx, http.MethodGet, identityPath(identityID)+"/groups", nil, &resp); err != nil {
		return nil, err
	}
	groups := make([]directory.GroupRef, 0, len(resp.Groups))
	for _, g := range resp.Groups {
		groups = append(groups, directory.GroupRef{ID: g.ID, Name: g.Name})
	}
	return groups, nil
}

// AddToTeam adds the identity to a team; already-a-member is success.
func (c *Client) AddToTeam(ctx context.Context, identityID, teamID string, role directory.TeamRole) error {
	body := map[string]any{"identityId": identityID, "role": string(role)}
	err := c.do(ctx, http.MethodPost, "/v1/teams/"+url.PathEscape(teamID)+"/members", body, nil)
	return squashMembershipConflict(err)
}

// RemoveFromTeam removes the identity from a team; not-a-member is success.
func (c *Client) RemoveFromTeam(ctx context.Context, identityID, teamID string) error {
	path := "/v1/teams/" + url.PathEscape(teamID) + "/members/" + url.PathEscape(identityID)
	err := c.do(ctx, http.MethodDelete, path, nil, nil)
	return squashMembershipMissing(err)
}

// ListTeams returns the identity's current team memberships.
func (c *Client) ListTeams(ctx context.Context, identityID string) ([]directory.TeamRef, error) {
	var resp struct {
		Teams []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"teams"`
	}
	if err := c.do(ctx, http.MethodGet, identityPath(identityID)+"/teams", nil, &resp); err != nil {
		return nil, err
	}
	teams := make([]directory.TeamRef, 0, len(resp.Teams))
	for _, t := range resp.Teams {
		teams = append(teams, directory.TeamRef{ID: t.ID, Name: t.Name})
	}
	return teams, nil
}

func identityPath(identityID string) string {
	return "/v1/identities/" + url.PathEscape(identityID)
}

// statusError carries the remote status so callers can normalize membership
// responses before the error escapes this package.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("directory returned %d: %s", e.status, e.body)
}

func squashMembershipConflict(err error) error {
	var se *statusError
	if errors.As(err, &se) && se.status == http.StatusConflict {
		return nil
	}
	return err
}

func squashMembershipMissing(err error) error {
	var se *statusError
	if errors.As(err, &se) && se.status == http.StatusNotFound {
		return nil
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "encode directory request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "build directory request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeExternal, "directory unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return dErrors.Wrap(err, dErrors.CodeExternal, "decode directory response")
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: %w: %w", method, path, sentinel.ErrNotFound, &statusError{status: resp.StatusCode, body: string(raw)})
	case resp.StatusCode == http.StatusConflict:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: %w: %w", method, path, sentinel.ErrConflict, &statusError{status: resp.StatusCode, body: string(raw)})
	default:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return dErrors.Wrap(&statusError{status: resp.StatusCode, body: string(raw)}, dErrors.CodeExternal, "directory call failed")
	}
}
