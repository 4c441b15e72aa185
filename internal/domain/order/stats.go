package order

// Stats summarizes one per-shop ingestion cycle
type Stats struct {
	Total    int
	Success  int
	Failed   int
	OrderSNs []string
}
