package application

import (
	"github.com/ericfisherdev/leadinbox/internal/domain/model"
)

// AdminIdentity is the caller identity returned by RequireTenantAdmin.
type AdminIdentity struct {
	UserID    string
	CompanyID string
}

// RequireTenantMember accepts any authenticated principal bound to a company.
func RequireTenantMember(p *model.Principal) (userID, companyID string, err error) {
	if p == nil || p.UserID == "" || p.CompanyID == "" {
		return "", "", ErrUnauthenticated
	}
	return p.UserID, p.CompanyID, nil
}

// RequireTenantAdmin accepts only principals holding the admin role.
func RequireTenantAdmin(p *model.Principal) (AdminIdentity, error) {
	userID, companyID, err := RequireTenantMember(p)
	if err != nil {
		return AdminIdentity{}, err
	}
	if !p.IsAdmin() {
		return AdminIdentity{}, ErrForbidden
	}
	return AdminIdentity{UserID: userID, CompanyID: companyID}, nil
}

// scopeCompany checks a caller-supplied company id against the session. An
// empty id means the session's own company.
func scopeCompany(sessionCompanyID, requested string) (string, error) {
	if requested != "" && requested != sessionCompanyID {
		return "", ErrForbidden
	}
	return sessionCompanyID, nil
}

// memberScope combines RequireTenantMember and scopeCompany.
func memberScope(p *model.Principal, requested string) (string, error) {
	_, companyID, err := RequireTenantMember(p)
	if err != nil {
		return "", err
	}
	return scopeCompany(companyID, requested)
}

// adminScope combines RequireTenantAdmin and scopeCompany.
func adminScope(p *model.Principal, requested string) (string, error) {
	id, err := RequireTenantAdmin(p)
	if err != nil {
		return "", err
	}
	return scopeCompany(id.CompanyID, requested)
}
