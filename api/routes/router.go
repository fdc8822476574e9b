package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/openshelf-backend/api/controllers"
	"github.com/angelmondragon/openshelf-backend/api/middleware"
	booksvc "github.com/angelmondragon/openshelf-backend/internal/books"
	borrowsvc "github.com/angelmondragon/openshelf-backend/internal/borrowings"
	paysvc "github.com/angelmondragon/openshelf-backend/internal/payments"
	usersvc "github.com/angelmondragon/openshelf-backend/internal/users"
	"github.com/angelmondragon/openshelf-backend/pkg/config"
	"github.com/angelmondragon/openshelf-backend/pkg/db"
	"github.com/angelmondragon/openshelf-backend/pkg/logger"
	"github.com/angelmondragon/openshelf-backend/pkg/redis"
)

// RouterParams carry everything the HTTP surface depends on.
type RouterParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         db.Pinger
	Redis      *redis.Client
	Users      usersvc.Service
	Books      booksvc.Service
	Borrowings borrowsvc.Service
	Payments   paysvc.Service
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(nil),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(params.DB, params.Redis, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", controllers.Register(params.Users, logg))
		r.Post("/login", controllers.Login(params.Users, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// catalog reads stay public
		r.Route("/books", func(r chi.Router) {
			r.Get("/", controllers.ListBooks(params.Books, logg))
			r.Get("/{bookID}", controllers.GetBook(params.Books, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(cfg.JWT, logg))
				r.Use(middleware.RequireStaff(logg))
				r.Post("/", controllers.CreateBook(params.Books, logg))
				r.Patch("/{bookID}", controllers.UpdateBook(params.Books, logg))
				r.Delete("/{bookID}", controllers.DeleteBook(params.Books, logg))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(params.Redis, logg))

			r.Get("/users/me", controllers.Me(params.Users, logg))

			r.Route("/borrowings", func(r chi.Router) {
				r.Post("/", controllers.CreateBorrowing(params.Borrowings, logg))
				r.Get("/", controllers.ListBorrowings(params.Borrowings, logg))
				r.Get("/{borrowingID}", controllers.GetBorrowing(params.Borrowings, logg))
				r.Post("/{borrowingID}/return", controllers.ReturnBorrowing(params.Borrowings, logg))
			})

			r.Route("/payments", func(r chi.Router) {
				r.Get("/", controllers.ListPayments(params.Payments, logg))
				r.Get("/cancel", controllers.PaymentCancel(params.Payments, logg))
				r.Get("/{paymentID}", controllers.GetPayment(params.Payments, logg))
				r.Post("/{paymentID}/renew", controllers.RenewPayment(params.Payments, logg))
				r.Get("/{paymentID}/success", controllers.PaymentSuccess(params.Payments, logg))
			})
		})
	})

	return r
}
