package main

import (
	"fmt"
	"net/http"

	"bitbucket.org/mmdatafocus/dealer_backend/models"
	"bitbucket.org/mmdatafocus/dealer_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// exportSalesOrdersHandler writes the filtered order list as an xlsx
// workbook, one row per order line. Orders without an assigned number
// yet are exported with a blank order number.
func exportSalesOrdersHandler(c *gin.Context) {
	profile, ok := requireCapability(c, models.CapabilityExportDocuments)
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

	f := excelize.NewFile()
	sheet := "Sheet1"
	if _, err := f.NewSheet(sheet); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Add headers
	headers := []string{
		"SalesOrderNo", "OrderDateTime", "OrderStatus", "CustomerCode",
		"CustomerName", "AreaCode", "PlacedBy", "ItemName", "PackageSize",
		"PackageUnit", "Qty", "SellingPrice", "Amount",
	}
	col := 'A'
	for _, h := range headers {
		f.SetCellValue(sheet, string(col)+"1", h)
		col++
	}

	// Add data
	rowNo := 2
	for _, order := range orders {
		_, itemsDoc, err := models.GetSalesOrder(c.Request.Context(), order.ID)
		if err != nil {
			writeModelError(c, err)
			return
		}
		for _, line := range itemsDoc.Items {
			f.SetCellValue(sheet, "A"+fmt.Sprint(rowNo), utils.DereferencePtr(order.SalesOrderNo))
			f.SetCellValue(sheet, "B"+fmt.Sprint(rowNo), order.OrderDateTime.Format("2006-01-02 15:04:05"))
			f.SetCellValue(sheet, "C"+fmt.Sprint(rowNo), string(order.OrderStatus))
			f.SetCellValue(sheet, "D"+fmt.Sprint(rowNo), order.CustomerExternalCode)
			f.SetCellValue(sheet, "E"+fmt.Sprint(rowNo), order.CustomerName)
			f.SetCellValue(sheet, "F"+fmt.Sprint(rowNo), order.AreaCode)
			f.SetCellValue(sheet, "G"+fmt.Sprint(rowNo), order.UserIDName)
			f.SetCellValue(sheet, "H"+fmt.Sprint(rowNo), line.ItemName)
			f.SetCellValue(sheet, "I"+fmt.Sprint(rowNo), line.PackageSize)
			f.SetCellValue(sheet, "J"+fmt.Sprint(rowNo), line.PackageUnit)
			f.SetCellValue(sheet, "K"+fmt.Sprint(rowNo), line.Qty.String())
			f.SetCellValue(sheet, "L"+fmt.Sprint(rowNo), line.SellingPrice.String())
			f.SetCellValue(sheet, "M"+fmt.Sprint(rowNo), line.Amount.String())
			rowNo++
		}
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=sales_orders.xlsx")
	if err := f.Write(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to write file"})
	}
}
