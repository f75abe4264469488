package controllers

// Controllers bundles every handler group for the router.
type Controllers struct {
	Auth    *AuthController
	User    *UserController
	Listing *ListingController
	Billing *BillingController
	Admin   *AdminController
}

// New builds all controllers on top of deps.
func New(deps *Dependencies, providers []string) *Controllers {
	return &Controllers{
		Auth:    NewAuthController(deps, providers),
		User:    NewUserController(deps),
		Listing: NewListingController(deps),
		Billing: NewBillingController(deps),
		Admin:   NewAdminController(deps),
	}
}
