/**
 * @description
 * Wire contract shared by the customer-service publisher and the account-service
 * projection synchronizer. Both sides must agree on these names and on the JSON shape.
 */
package events

const (
	// CustomerExchange is the topic exchange customer notifications are published to.
	CustomerExchange = "customer_events"
	// CustomerChangedRoutingKey is used for every create and update.
	CustomerChangedRoutingKey = "customer.changed"
	// CustomerChangedQueue is the account-service queue bound to CustomerChangedRoutingKey.
	CustomerChangedQueue = "customer.events.queue"
)

// CustomerChanged is emitted once per committed customer create or update.
// It carries no version; consumers must not rely on arrival order for one id.
type CustomerChanged struct {
	CustomerID int64  `json:"customerId"`
	Name       string `json:"name"`
}
