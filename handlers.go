package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"bitbucket.org/mmdatafocus/dealer_backend/models"
	"bitbucket.org/mmdatafocus/dealer_backend/utils"
	"github.com/gin-gonic/gin"
)

func sessionProfile(c *gin.Context) (*models.UserProfile, error) {
	ctx := c.Request.Context()
	if uid, ok := utils.GetUidFromContext(ctx); ok && uid != "" {
		return models.GetUserProfileByUid(ctx, uid)
	}
	// JWT from an external issuer may carry only the email claim.
	if email, ok := utils.GetEmailFromContext(ctx); ok && email != "" {
		return models.GetUserProfileByEmail(ctx, email)
	}
	return nil, errors.New("unauthorized")
}

// requireCapability loads the session profile and checks the capability
// against the dealer resolved by DealerMiddleware. It writes the error
// response itself; callers bail out when ok is false.
func requireCapability(c *gin.Context, capability models.Capability) (*models.UserProfile, bool) {
	dealerId, ok := utils.GetDealerIdFromContext(c.Request.Context())
	if !ok || dealerId == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "x-dealer-id header is required"})
		return nil, false
	}
	profile, err := sessionProfile(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	if !models.HasCapability(profile, capability, dealerId) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return nil, false
	}
	return profile, true
}

func requireDealerUser(c *gin.Context) (*models.UserProfile, bool) {
	dealerId, ok := utils.GetDealerIdFromContext(c.Request.Context())
	if !ok || dealerId == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "x-dealer-id header is required"})
		return nil, false
	}
	profile, err := sessionProfile(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	return profile, true
}

func requireAdmin(c *gin.Context) (*models.UserProfile, bool) {
	profile, err := sessionProfile(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	if !models.HasRole(profile, []models.Role{models.RoleAdmin}, "") {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return nil, false
	}
	c.Request = c.Request.WithContext(utils.SetIsAdminInContext(c.Request.Context(), true))
	return profile, true
}

// ownCustomerCode returns the mapping's customer code when the user is
// a customer without the view-all capability; such users act only as
// themselves.
func ownCustomerCode(profile *models.UserProfile, dealerId string) (string, bool) {
	mapping := profile.MappingForDealer(dealerId)
	if mapping == nil {
		return "", false
	}
	if mapping.Roles.Contains(models.RoleCustomer) &&
		!models.HasCapability(profile, models.CapabilityViewAllOrders, dealerId) {
		return mapping.CustomerExternalCode, true
	}
	return "", false
}

func writeModelError(c *gin.Context, err error) {
	var stockErr *models.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{"error": stockErr.Error()})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

// ---- auth ----

func loginHandler(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	info, err := models.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

func logoutHandler(c *gin.Context) {
	ok, err := models.Logout(c.Request.Context())
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": ok})
}

func signupHandler(c *gin.Context) {
	var input models.SignupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	profile, err := models.Signup(c.Request.Context(), input)
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusCreated, profile)
}

func changePasswordHandler(c *gin.Context) {
	var input models.ChangePasswordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ok, err := models.ChangePassword(c.Request.Context(), input)
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": ok})
}

func registerFcmTokenHandler(c *gin.Context) {
	var input struct {
		FcmToken string `json:"fcmToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	uid, ok := utils.GetUidFromContext(c.Request.Context())
	if !ok || uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if err := models.RegisterFcmToken(c.Request.Context(), uid, input.FcmToken); err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func myDealersHandler(c *gin.Context) {
	profile, err := sessionProfile(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	dealers, err := models.UserDealerList(c.Request.Context(), profile)
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusOK, dealers)
}

// ---- dealers (admin only) ----

func createDealerHandler(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}
	var input models.NewDealer
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dealer, err := models.CreateDealer(c.Request.Context(), input)
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dealer)
}

func listDealersHandler(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}
	dealers, err := models.GetDealersList(c.Request.Context())
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusOK, dealers)
}

func getDealerHandler(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}
	dealer, err := models.GetDealerById(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusOK, dealer)
}

func updateDealerHandler(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}
	var input models.UpdateDealerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dealer, err := models.UpdateDealer(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusOK, dealer)
}

// ---- catalog ----

func listItemsHandler(c *gin.Context) {
	if _, ok := requireDealerUser(c); !ok {
		return
	}
	items, err := models.GetItemsList(c.Request.Context())
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func getItemHandler(c *gin.Context) {
	if _, ok := requireDealerUser(c); !ok {
		return
	}
	item, err := models.GetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func createItemHandler(c *gin.Context) {
	if _, ok := requireCapability(c, models.CapabilityManageCatalog); !ok {
		return
	}
	var input models.NewItem
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item, err := models.CreateItem(c.Request.Context(), input)
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func modifyItemHandler(c *gin.Context) {
	if _, ok := requireCapability(c, models.CapabilityManageCatalog); !ok {
		return
	}
	var input models.ModifyItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item, err := models.ModifyItem(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func deleteItemHandler(c *gin.Context) {
	if _, ok := requireCapability(c, models.CapabilityManageCatalog); !ok {
		return
	}
	item, err := models.DeleteItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func listItemPackagesHandler(c *gin.Context) {
	if _, ok := requireDealerUser(c); !ok {
		return
	}
	packages, err := models.GetItemPackagesList(c.Request.Context())
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusOK, packages)
}

func createItemPackageHandler(c *gin.Context) {
	if _, ok := requireCapability(c, models.CapabilityManageCatalog); !ok {
		return
	}
	var input models.NewItemPackage
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	pkg, err := models.CreateItemPackage(c.Request.Context(), input)
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pkg)
}

func modifyItemPackageHandler(c *gin.Context) {
	if _, ok := requireCapability(c, models.CapabilityManageCatalog); !ok {
		return
	}
	var input models.ModifyItemPackageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	pkg, err := models.ModifyItemPackage(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusOK, pkg)
}

func deleteItemPackageHandler(c *gin.Context) {
	if _, ok := requireCapability(c, models.CapabilityManageCatalog); !ok {
		return
	}
	pkg, err := models.DeleteItemPackage(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusOK, pkg)
}

// ---- stock ----

func listItemStockPricesHandler(c *gin.Context) {
	if _, ok := requireDealerUser(c); !ok {
		return
	}
	lots, err := models.GetItemStockPricesList(c.Request.Context())
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusOK, lots)
}

func uploadItemStockPricesHandler(c *gin.Context) {
	if _, ok := requireCapability(c, models.CapabilityManageStock); !ok {
		return
	}
	var input struct {
		Rows []models.NewItemStockPrice `json:"rows" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	lots, err := models.UploadItemStockPrices(c.Request.Context(), input.Rows)
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lots)
}

func deleteItemStockPricesHandler(c *gin.Context) {
	if _, ok := requireCapability(c, models.CapabilityManageStock); !ok {
		return
	}
	var input struct {
		Ids []string `json:"ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	affected, err := models.DeleteItemStockPrices(c.Request.Context(), input.Ids)
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": affected})
}

// ---- purchase orders ----

func createPurchaseOrderHandler(c *gin.Context) {
	if _, ok := requireCapability(c, models.CapabilityManageStock); !ok {
		return
	}
	var input models.NewPurchaseOrder
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	po, err := models.CreatePurchaseOrder(c.Request.Context(), input)
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusCreated, po)
}

func listPurchaseOrdersHandler(c *gin.Context) {
	if _, ok := requireCapability(c, models.CapabilityManageStock); !ok {
		return
	}
	pos, err := models.GetPurchaseOrdersList(c.Request.Context())
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusOK, pos)
}

// ---- sales orders ----

func createSalesOrderHandler(c *gin.Context) {
	profile, ok := requireCapability(c, models.CapabilityPlaceOrders)
	if !ok {
		return
	}
	var input models.NewSalesOrder
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// Customers always order as themselves, whatever code the client
	// sends.
	dealerId, _ := utils.GetDealerIdFromContext(c.Request.Context())
	if code, own := ownCustomerCode(profile, dealerId); own {
		input.CustomerExternalCode = code
		input.CustomerName = profile.Name
	}
	order, err := models.CreateSalesOrder(c.Request.Context(), input)
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func getSalesOrderHandler(c *gin.Context) {
	if _, ok := requireDealerUser(c); !ok {
		return
	}
	order, items, err := models.GetSalesOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "items": items.Items})
}

func listSalesOrdersHandler(c *gin.Context) {
	profile, ok := requireDealerUser(c)
	if !ok {
		return
	}
	filter, err := parseSalesOrderFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	orders, err := models.GetSalesOrdersList(c.Request.Context(), profile, filter)
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func parseSalesOrderFilter(c *gin.Context) (models.SalesOrderFilter, error) {
	var filter models.SalesOrderFilter
	if s := c.Query("status"); s != "" {
		status, err := models.ParseOrderStatus(s)
		if err != nil {
			return filter, err
		}
		filter.Status = &status
	}
	if s := c.Query("exportedOnly"); s == "true" {
		filter.ExportedOnly = utils.NewTrue()
	} else if s == "false" {
		filter.ExportedOnly = utils.NewFalse()
	}
	if s := c.Query("from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return filter, errors.New("from must be RFC3339")
		}
		filter.From = &t
	}
	if s := c.Query("to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return filter, errors.New("to must be RFC3339")
		}
		filter.To = &t
	}
	return filter, nil
}

func updateSalesOrderStatusHandler(c *gin.Context) {
	if _, ok := requireCapability(c, models.CapabilityManageOrders); !ok {
		return
	}
	var input models.UpdateSalesOrderStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, err := models.UpdateSalesOrderStatus(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func deleteSalesOrderHandler(c *gin.Context) {
	if _, ok := requireCapability(c, models.CapabilityPlaceOrders); !ok {
		return
	}
	ok, err := models.DeleteSalesOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": ok})
}

func markSalesOrdersExportedHandler(c *gin.Context) {
	if _, ok := requireCapability(c, models.CapabilityExportDocuments); !ok {
		return
	}
	var input struct {
		Ids []string `json:"ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	affected, err := models.MarkSalesOrdersExported(c.Request.Context(), input.Ids)
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": affected})
}

// ---- customers ----

func createCustomerHandler(c *gin.Context) {
	if _, ok := requireCapability(c, models.CapabilityManageUsers); !ok {
		return
	}
	var input models.NewCustomer
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	customer, err := models.CreateCustomer(c.Request.Context(), input)
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func listCustomersHandler(c *gin.Context) {
	profile, ok := requireDealerUser(c)
	if !ok {
		return
	}
	customers, err := models.GetCustomersList(c.Request.Context(), profile)
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusOK, customers)
}

// ---- external users ----

func createExternalUserHandler(c *gin.Context) {
	if _, ok := requireCapability(c, models.CapabilityManageUsers); !ok {
		return
	}
	var input models.NewExternalUser
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	profile, err := models.CreateExternalUser(c.Request.Context(), input)
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusCreated, profile)
}

func deleteExternalUserHandler(c *gin.Context) {
	if _, ok := requireCapability(c, models.CapabilityManageUsers); !ok {
		return
	}
	var input struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ok, err := models.DeleteExternalUser(c.Request.Context(), input.Email)
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": ok})
}

func listExternalUsersHandler(c *gin.Context) {
	if _, ok := requireCapability(c, models.CapabilityManageUsers); !ok {
		return
	}
	profiles, err := models.ExternalUsersForDealer(c.Request.Context())
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusOK, profiles)
}

// ---- favorites and static data versions ----

func favoriteItemStockPricesHandler(c *gin.Context) {
	profile, ok := requireDealerUser(c)
	if !ok {
		return
	}
	dealerId, _ := utils.GetDealerIdFromContext(c.Request.Context())

	// Customers always read their own favorites; other roles may pass
	// an explicit customer code.
	code := c.Query("customerExternalCode")
	if own, ok := ownCustomerCode(profile, dealerId); ok {
		code = own
	}

	refs, err := models.GetFavoriteItemStockPriceReferences(c.Request.Context(), code)
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"itemStockPriceIDs": refs})
}

func staticDataVersionHandler(c *gin.Context) {
	if _, ok := requireDealerUser(c); !ok {
		return
	}
	version, err := models.TrackVersionOfStaticData(c.Request.Context())
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusOK, version)
}

// ---- internal ops ----

func resetSalesOrdersHandler(c *gin.Context) {
	if _, ok := requireAdmin(c); !ok {
		return
	}
	dealerId, ok := utils.GetDealerIdFromContext(c.Request.Context())
	if !ok || dealerId == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "x-dealer-id header is required"})
		return
	}
	var input struct {
		Before time.Time `json:"before" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	deleted, err := models.DeleteAllSalesOrders(c.Request.Context(), input.Before)
	if err != nil {
		writeModelError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func ctxWithDealer(ctx context.Context, dealerId string) context.Context {
	return context.WithValue(ctx, utils.ContextKeyDealerId, dealerId)
}
