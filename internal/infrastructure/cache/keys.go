package cache

// Chaves das leituras em cache.

func MovementKey(id string) string         { return "movement:" + id }
func MovementInvoicesKey(id string) string { return "movement:" + id + ":invoices" }
func PersonKey(id string) string           { return "person:" + id }
