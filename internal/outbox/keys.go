package outbox

// Event keys written by the document engine and posting handlers.
const (
	EventDocumentSubmitted = "document.submitted"
	EventDocumentApproved  = "document.approved"
	EventDocumentRejected  = "document.rejected"
	EventDocumentCancelled = "document.cancelled"
	EventDocumentPosted    = "document.posted"

	EventSalesInvoicePosted  = "sales.invoice.posted"
	EventSalesOrderPosted    = "sales.order.posted"
	EventPurchasingPOPosted  = "purchasing.po.posted"
	EventPurchasingGRNPosted = "purchasing.grn.posted"
)

// PostedEventKeys are forwarded to downstream subsystems.
var PostedEventKeys = []string{
	EventDocumentPosted,
	EventSalesInvoicePosted,
	EventSalesOrderPosted,
	EventPurchasingPOPosted,
	EventPurchasingGRNPosted,
}
