package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/naosaki/naowatt-backend/api/controllers"
	"github.com/naosaki/naowatt-backend/api/middleware"
	"github.com/naosaki/naowatt-backend/internal/accounts"
	"github.com/naosaki/naowatt-backend/internal/auth"
	"github.com/naosaki/naowatt-backend/internal/catalog"
	"github.com/naosaki/naowatt-backend/internal/invitations"
	"github.com/naosaki/naowatt-backend/internal/memberships"
	"github.com/naosaki/naowatt-backend/internal/organizations"
	"github.com/naosaki/naowatt-backend/internal/users"
	"github.com/naosaki/naowatt-backend/pkg/auth/session"
	"github.com/naosaki/naowatt-backend/pkg/config"
	"github.com/naosaki/naowatt-backend/pkg/enums"
	"github.com/naosaki/naowatt-backend/pkg/logger"
	"github.com/naosaki/naowatt-backend/pkg/metrics"
)

// Deps collects everything the HTTP surface needs. Keeping it a struct
// saves the constructor from a 15-argument signature.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Sessions session.AccessSessionChecker
	Database controllers.Pinger
	Cache    controllers.Pinger

	AuthService   *auth.Service
	Invitations   *invitations.Service
	Memberships   *memberships.Service
	Organizations *organizations.Service
	Catalog       *catalog.Service
	Provisioner   *accounts.Provisioner
	UserRepo      *users.Repository
	OrgRepo       *organizations.Repository

	Metrics      *metrics.HTTPMetrics
	PromGatherer prometheus.Gatherer
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, d.Metrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Database, d.Cache))
	})

	if d.PromGatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.PromGatherer, promhttp.HandlerOpts{}))
	}

	authenticated := middleware.Authenticate(cfg.JWT, d.Sessions, logg)
	adminOnly := middleware.RequireRole(logg, enums.RoleAdmin)
	canInvite := middleware.RequireInviter(logg)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/login", controllers.AuthLogin(d.AuthService, logg))
		r.With(authenticated).Post("/refresh", controllers.AuthRefresh(d.AuthService, logg))
		r.With(authenticated).Post("/logout", controllers.AuthLogout(d.AuthService, logg))
	})

	r.Route("/api/v1/invitations", func(r chi.Router) {
		// Pre-acceptance endpoints are public: invitees have no account yet.
		r.Get("/verify", controllers.InvitationVerify(d.Invitations, logg))
		r.Post("/accept", controllers.InvitationAccept(d.Invitations, logg))

		r.Group(func(r chi.Router) {
			r.Use(authenticated, canInvite)
			r.Post("/", controllers.InvitationCreate(d.Invitations, d.UserRepo, d.OrgRepo, logg))
			r.Get("/", controllers.InvitationList(d.Invitations, logg))
			r.Post("/{id}/resend", controllers.InvitationResend(d.Invitations, logg))
			r.Delete("/{id}", controllers.InvitationCancel(d.Invitations, logg))
		})
	})

	r.Route("/api/v1/organizations", func(r chi.Router) {
		r.Use(authenticated)

		r.With(adminOnly).Get("/", controllers.OrganizationList(d.Organizations, logg))

		r.Route("/{orgID}", func(r chi.Router) {
			r.Use(middleware.RequireOrgAdmin(logg))
			r.Get("/", controllers.OrganizationGet(d.Organizations, logg))
			r.Route("/members", func(r chi.Router) {
				r.Get("/", controllers.OrganizationMembers(d.Organizations, logg))
				r.Post("/", controllers.MemberAttach(d.Memberships, logg))
				r.Delete("/{userID}", controllers.MemberDetach(d.Memberships, logg))
				r.Patch("/{userID}", controllers.MemberSetAdmin(d.Memberships, logg))
			})
		})
	})

	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Use(authenticated)

		r.Get("/categories", controllers.CatalogCategories(d.Catalog, logg))
		r.Get("/product-types", controllers.CatalogProductTypes(d.Catalog, logg))
		r.Get("/languages", controllers.CatalogLanguages(d.Catalog, logg))
		r.Get("/products", controllers.CatalogProducts(d.Catalog, logg))
		r.Get("/products/{id}", controllers.CatalogProductGet(d.Catalog, logg))
		r.Get("/documents", controllers.CatalogDocuments(d.Catalog, logg))
		r.Get("/documents/{id}", controllers.CatalogDocumentGet(d.Catalog, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(authenticated, adminOnly)

		r.Post("/users", controllers.UserCreate(d.Provisioner, logg))
		r.Delete("/users/{uid}", controllers.UserDeprovision(d.Provisioner, logg))

		r.Route("/catalog", func(r chi.Router) {
			r.Post("/categories", controllers.CategoryCreate(d.Catalog, logg))
			r.Put("/categories/{id}", controllers.CategoryUpdate(d.Catalog, logg))
			r.Delete("/categories/{id}", controllers.CategoryDelete(d.Catalog, logg))

			r.Post("/product-types", controllers.ProductTypeCreate(d.Catalog, logg))
			r.Delete("/product-types/{id}", controllers.ProductTypeDelete(d.Catalog, logg))

			r.Post("/languages", controllers.LanguageCreate(d.Catalog, logg))
			r.Delete("/languages/{id}", controllers.LanguageDelete(d.Catalog, logg))

			r.Post("/products", controllers.ProductCreate(d.Catalog, logg))
			r.Put("/products/{id}", controllers.ProductUpdate(d.Catalog, logg))
			r.Delete("/products/{id}", controllers.ProductDelete(d.Catalog, logg))

			r.Post("/documents", controllers.DocumentCreate(d.Catalog, logg))
			r.Put("/documents/{id}", controllers.DocumentUpdate(d.Catalog, logg))
			r.Delete("/documents/{id}", controllers.DocumentDelete(d.Catalog, logg))
		})
	})

	return r
}
