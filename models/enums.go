package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

/* roles */

type Role string

const (
	RoleAdmin       Role = "admin"
	RoleDealer      Role = "dealer"
	RoleManager     Role = "manager"
	RoleOperator    Role = "operator"
	RoleSalesperson Role = "salesperson"
	RoleCustomer    Role = "customer"
)

var allRoles = map[Role]bool{
	RoleAdmin:       true,
	RoleDealer:      true,
	RoleManager:     true,
	RoleOperator:    true,
	RoleSalesperson: true,
	RoleCustomer:    true,
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !allRoles[r] {
		return "", fmt.Errorf("unknown role %s", s)
	}
	return r, nil
}

// RoleSet is a JSON column holding the roles granted by a dealer mapping.
type RoleSet []Role

func (rs RoleSet) Contains(role Role) bool {
	for _, r := range rs {
		if r == role {
			return true
		}
	}
	return false
}

func (rs RoleSet) Value() (driver.Value, error) {
	if rs == nil {
		rs = RoleSet{}
	}
	return json.Marshal(rs)
}

func (rs *RoleSet) Scan(value interface{}) error {
	if value == nil {
		*rs = RoleSet{}
		return nil
	}
	data, err := toBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, rs)
}

/* capabilities */

type Capability string

const (
	CapabilityManageCatalog   Capability = "manage_catalog"
	CapabilityManageStock     Capability = "manage_stock"
	CapabilityPlaceOrders     Capability = "place_orders"
	CapabilityManageOrders    Capability = "manage_orders"
	CapabilityManageUsers     Capability = "manage_users"
	CapabilityViewAllOrders   Capability = "view_all_orders"
	CapabilityExportDocuments Capability = "export_documents"
)

var roleCapabilities = map[Role][]Capability{
	RoleAdmin: {
		CapabilityManageCatalog, CapabilityManageStock, CapabilityPlaceOrders,
		CapabilityManageOrders, CapabilityManageUsers, CapabilityViewAllOrders,
		CapabilityExportDocuments,
	},
	RoleDealer: {
		CapabilityManageCatalog, CapabilityManageStock, CapabilityPlaceOrders,
		CapabilityManageOrders, CapabilityManageUsers, CapabilityViewAllOrders,
		CapabilityExportDocuments,
	},
	RoleManager: {
		CapabilityManageCatalog, CapabilityManageStock, CapabilityManageOrders,
		CapabilityViewAllOrders, CapabilityExportDocuments,
	},
	RoleOperator: {
		CapabilityManageStock, CapabilityManageOrders, CapabilityViewAllOrders,
	},
	RoleSalesperson: {
		CapabilityPlaceOrders,
	},
	RoleCustomer: {
		CapabilityPlaceOrders,
	},
}

func (r Role) HasCapability(c Capability) bool {
	for _, cap := range roleCapabilities[r] {
		if cap == c {
			return true
		}
	}
	return false
}

/* order status */

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPacked    OrderStatus = "packed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var allOrderStatuses = map[OrderStatus]bool{
	OrderStatusPending:   true,
	OrderStatusConfirmed: true,
	OrderStatusPacked:    true,
	OrderStatusShipped:   true,
	OrderStatusDelivered: true,
	OrderStatusCancelled: true,
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if !allOrderStatuses[st] {
		return "", fmt.Errorf("unknown order status %s", s)
	}
	return st, nil
}

/* trigger message vocabulary */

const (
	ActionCreate = "C"
	ActionUpdate = "U"
	ActionDelete = "D"
)

const (
	ReferenceTypeItem             = "ITEM"
	ReferenceTypePurchaseOrder    = "PURCHASE_ORDER"
	ReferenceTypeSalesOrder       = "SALES_ORDER"
	ReferenceTypeSalesOrderStatus = "SALES_ORDER_STATUS"
	ReferenceTypeExternalUser     = "EXTERNAL_USER"
)

/* static data version counters */

type StaticDataKind string

const (
	StaticDataCustomers    StaticDataKind = "C"
	StaticDataItems        StaticDataKind = "I"
	StaticDataSalespersons StaticDataKind = "S"
)

func toBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("unsupported column type for json scan")
	}
}

/* json column helpers shared by catalog models */

type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		s = StringSlice{}
	}
	return json.Marshal(s)
}

func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = StringSlice{}
		return nil
	}
	data, err := toBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, s)
}
