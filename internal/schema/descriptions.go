package schema

import (
	"fmt"
	"strings"
)

var tableDescriptions = map[string]string{
	"users":              "Manages all user accounts, including their roles (Admin, Manager, User), contact information, and login history.",
	"assets":             "Stores comprehensive details about all physical and digital assets, such as laptops, monitors, and software licenses. It tracks their status (e.g., Available, Assigned, Maintenance), location, and financial information.",
	"assethistories":     "Logs every significant event and change related to an asset, including assignments, unassignments, status changes, and location transfers.",
	"maintenancerecords": "Keeps track of all maintenance activities performed on assets, including scheduled maintenance, repairs, and service dates.",
	"refreshtokens":      "Used internally for secure user authentication, managing long-lived sessions.",
}

var columnDescriptions = map[string]string{
	"assets.id":                        "Unique identifier for each asset.",
	"assets.name":                      "The common name of the asset (e.g., 'Dell Latitude Laptop').",
	"assets.assettag":                  "A unique, internal tag used to identify the asset within the system (e.g., 'LAPTOP001').",
	"assets.category":                  "The type or classification of the asset (e.g., 'Laptop', 'Monitor', 'Software').",
	"assets.brand":                     "The manufacturer of the asset (e.g., 'Dell', 'Lenovo').",
	"assets.status":                    "The current operational status of the asset (e.g., 'Available', 'Assigned', 'Maintenance', 'Retired').",
	"assets.location":                  "The physical or logical location where the asset is currently situated.",
	"assets.assignedtouserid":          "The ID of the user to whom the asset is currently assigned.",
	"assets.purchaseprice":             "The original cost of the asset at the time of purchase.",
	"users.id":                         "Unique identifier for each user.",
	"users.username":                   "The unique username used for logging into the system.",
	"users.email":                      "The primary email address of the user.",
	"users.firstname":                  "The first name of the user.",
	"users.lastname":                   "The last name of the user.",
	"users.role":                       "The role of the user within the system (e.g., 'Admin', 'Manager', 'User').",
	"maintenancerecords.id":            "Unique identifier for each maintenance record.",
	"maintenancerecords.assetid":       "The ID of the asset on which maintenance was performed.",
	"maintenancerecords.type":          "The type of maintenance performed (e.g., 'Preventive', 'Corrective', 'Emergency').",
	"maintenancerecords.cost":          "The cost associated with the maintenance activity.",
	"maintenancerecords.scheduleddate": "The date the maintenance is scheduled for.",
	"assethistories.id":                "Unique identifier for each asset history record.",
	"assethistories.assetid":           "The ID of the asset to which this history record pertains.",
	"assethistories.action":            "The type of action recorded (e.g., 'Assigned', 'Unassigned', 'Status Change').",
	"assethistories.timestamp":         "The date and time when the action occurred.",
	"refreshtokens.userid":             "The ID of the user the token was issued to.",
	"refreshtokens.expirydate":         "When the token stops being accepted.",
}

// TableDescription returns the human description of a table.
func TableDescription(table string) string {
	if description, ok := tableDescriptions[strings.ToLower(table)]; ok {
		return description
	}
	return fmt.Sprintf("Information about %s table.", table)
}

// ColumnDescription returns the human description of a column.
func ColumnDescription(table, column string) string {
	key := strings.ToLower(table) + "." + strings.ToLower(column)
	if description, ok := columnDescriptions[key]; ok {
		return description
	}
	return fmt.Sprintf("The %s field of the %s table.", column, table)
}
