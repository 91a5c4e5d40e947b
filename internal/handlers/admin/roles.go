package admin

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"seaprocure/internal/audit"
	"seaprocure/internal/auth"
	"seaprocure/internal/models"
	"seaprocure/internal/response"
	"seaprocure/internal/roles"
	"seaprocure/internal/server"
)

func validPortal(p string) bool {
	_, ok := auth.PortalPermissions[p]
	return ok
}

// ListRoles lists the roles of ?portal=X with every permission flag.
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	portal := r.URL.Query().Get("portal")
	if !validPortal(portal) {
		response.Err(w, "portal must be vendor, customer or tech", 400)
		return
	}
	list, err := h.Roles.ListRoles(r.Context(), portal)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if list == nil {
		list = []models.Role{}
	}
	response.JSON(w, list)
}

// SaveRole creates or replaces a role. Flags missing from the body are
// stored as false.
func (h *Handler) SaveRole(w http.ResponseWriter, r *http.Request) {
	portal, name := chi.URLParam(r, "portal"), chi.URLParam(r, "name")
	if !validPortal(portal) {
		response.Err(w, "portal must be vendor, customer or tech", 400)
		return
	}
	var body struct {
		Permissions map[string]bool `json:"permissions"`
	}
	if err := response.DecodeBody(r, &body); err != nil {
		response.Err(w, "Invalid request body", 400)
		return
	}

	role := models.Role{Name: name, Portal: portal, Permissions: body.Permissions}
	err := h.Roles.SaveRole(r.Context(), role)
	switch {
	case errors.Is(err, roles.ErrUnknownPermission), errors.Is(err, roles.ErrInvalidName):
		response.Err(w, err.Error(), 400)
		return
	case err != nil:
		response.Err(w, err.Error(), 500)
		return
	}

	saved, err := h.findRole(r, portal, name)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	h.audit(server.Username(r), audit.Entry{Action: audit.ActionUpdate, Module: audit.ModuleRoles,
		RecordID: portal + "/" + name, Summary: "Saved role " + name + " on the " + portal + " portal"})
	response.JSON(w, saved)
}

// DeleteRole removes a role and all of its flags.
func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	portal, name := chi.URLParam(r, "portal"), chi.URLParam(r, "name")
	err := h.Roles.DeleteRole(r.Context(), portal, name)
	if errors.Is(err, roles.ErrRoleNotFound) {
		response.Err(w, err.Error(), 404)
		return
	}
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	h.audit(server.Username(r), audit.Entry{Action: audit.ActionDelete, Module: audit.ModuleRoles,
		RecordID: portal + "/" + name, Summary: "Deleted role " + name + " on the " + portal + " portal"})
	response.JSON(w, map[string]string{"status": "deleted"})
}

// RenameRole renames a role, keeping its flags and its users.
func (h *Handler) RenameRole(w http.ResponseWriter, r *http.Request) {
	portal, name := chi.URLParam(r, "portal"), chi.URLParam(r, "name")
	if !validPortal(portal) {
		response.Err(w, "portal must be vendor, customer or tech", 400)
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := response.DecodeBody(r, &body); err != nil {
		response.Err(w, "Invalid request body", 400)
		return
	}
	to := strings.TrimSpace(body.Name)

	current, err := h.findRole(r, portal, name)
	if errors.Is(err, roles.ErrRoleNotFound) {
		response.Err(w, err.Error()+": "+name, 404)
		return
	}
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	current.Name = to
	err = h.Roles.RenameRole(r.Context(), name, current)
	switch {
	case errors.Is(err, roles.ErrInvalidName):
		response.Err(w, err.Error(), 400)
		return
	case errors.Is(err, roles.ErrDuplicateRole):
		response.Err(w, err.Error(), 409)
		return
	case errors.Is(err, roles.ErrRoleNotFound):
		response.Err(w, err.Error(), 404)
		return
	case err != nil:
		response.Err(w, err.Error(), 500)
		return
	}

	h.audit(server.Username(r), audit.Entry{Action: audit.ActionUpdate, Module: audit.ModuleRoles,
		RecordID: portal + "/" + to, Summary: "Renamed role " + name + " to " + to + " on the " + portal + " portal"})
	response.JSON(w, current)
}

func (h *Handler) findRole(r *http.Request, portal, name string) (models.Role, error) {
	list, err := h.Roles.ListRoles(r.Context(), portal)
	if err != nil {
		return models.Role{}, err
	}
	for _, role := range list {
		if role.Name == name {
			return role, nil
		}
	}
	return models.Role{}, roles.ErrRoleNotFound
}
