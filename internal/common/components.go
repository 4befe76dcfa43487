package common

const (
	ComponentCrawler     = "crawler"
	ComponentScheduler   = "scheduler"
	ComponentRPC         = "rpc"
	ComponentStore       = "store"
	ComponentAPI         = "api"
	ComponentMaintenance = "maintenance"
)

var AllComponents = map[string]struct{}{
	ComponentCrawler:     {},
	ComponentScheduler:   {},
	ComponentRPC:         {},
	ComponentStore:       {},
	ComponentAPI:         {},
	ComponentMaintenance: {},
}
