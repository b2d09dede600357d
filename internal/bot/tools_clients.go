package bot

import (
	"context"

	apperrors "crm-gin/internal/errors"
	"crm-gin/internal/models"
	"crm-gin/internal/repositories"
	"crm-gin/internal/services"

	"github.com/google/uuid"
)

// clientHandle is the short form of a client embedded in tool results
type clientHandle struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func (h *clientHandle) idPtr() *uuid.UUID {
	if h == nil {
		return nil
	}
	id := h.ID
	return &id
}

type searchClientsArgs struct {
	Query  string `json:"query,omitempty" jsonschema_description:"Texte recherché dans le nom, le contact ou l'email"`
	Status string `json:"status,omitempty" jsonschema:"enum=prospect,enum=active,enum=inactive"`
	Limit  int    `json:"limit,omitempty"`
}

type getClientArgs struct {
	ClientRef
}

// ClientFields are the optional client attributes shared by create and update
type ClientFields struct {
	ContactFirstName *string `json:"contactFirstName,omitempty"`
	ContactLastName  *string `json:"contactLastName,omitempty"`
	Email            *string `json:"email,omitempty"`
	Phone            *string `json:"phone,omitempty"`
	Address          *string `json:"address,omitempty"`
	PostalCode       *string `json:"postalCode,omitempty"`
	City             *string `json:"city,omitempty"`
	Country          *string `json:"country,omitempty"`
	SIRET            *string `json:"siret,omitempty"`
	VATNumber        *string `json:"vatNumber,omitempty"`
	Status           *string `json:"status,omitempty" jsonschema:"enum=prospect,enum=active,enum=inactive"`
}

func (f ClientFields) input() services.ClientInput {
	in := services.ClientInput{
		ContactFirstName: f.ContactFirstName,
		ContactLastName:  f.ContactLastName,
		Email:            f.Email,
		Phone:            f.Phone,
		Address:          f.Address,
		PostalCode:       f.PostalCode,
		City:             f.City,
		Country:          f.Country,
		SIRET:            f.SIRET,
		VATNumber:        f.VATNumber,
	}
	if f.Status != nil {
		status := models.ClientStatus(*f.Status)
		in.Status = &status
	}
	return in
}

type createClientArgs struct {
	CompanyName string `json:"companyName" jsonschema:"required" jsonschema_description:"Raison sociale"`
	ClientFields
}

type updateClientArgs struct {
	ClientRef
	CompanyName *string `json:"companyName,omitempty" jsonschema_description:"Nouvelle raison sociale"`
	ClientFields
}

func clientTools() []Tool {
	return []Tool{
		define("search_clients", "Rechercher des clients par nom, contact ou email",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a searchClientsArgs) (any, error) {
				if a.Status != "" && !models.IsValidClientStatus(a.Status) {
					return nil, apperrors.Invalid("Statut client invalide")
				}
				clients, total, err := d.deps.Clients.Search(ctx, tc.TenantID,
					repositories.ClientFilter{Search: a.Query, Status: models.ClientStatus(a.Status)},
					repositories.FindOptions{Limit: limitOr(a.Limit, 10, 50)})
				if err != nil {
					return nil, err
				}
				return list(clients, total), nil
			}),

		define("get_client", "Afficher la fiche d'un client avec son chiffre d'affaires et ses encours",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a getClientArgs) (any, error) {
				c, err := d.client(ctx, tc, a.ClientRef)
				if err != nil {
					return nil, err
				}
				return d.deps.Analytics.ClientSummary(ctx, tc.TenantID, c.ID)
			}),

		define("create_client", "Créer un nouveau client ou prospect",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a createClientArgs) (any, error) {
				in := a.ClientFields.input()
				in.CompanyName = &a.CompanyName
				return d.deps.Clients.Create(ctx, tc.TenantID, in)
			}),

		define("update_client", "Modifier les informations d'un client",
			func(ctx context.Context, d *Dispatcher, tc *ToolContext, a updateClientArgs) (any, error) {
				c, err := d.client(ctx, tc, a.ClientRef)
				if err != nil {
					return nil, err
				}
				in := a.ClientFields.input()
				in.CompanyName = a.CompanyName
				return d.deps.Clients.Update(ctx, tc.TenantID, c.ID, in)
			}),
	}
}
