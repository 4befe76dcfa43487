// Package api provides the REST query API for indexed staking events
// @title StakeWatch API
// @version 1.0
// @description REST API for querying staking events indexed by StakeWatch
// @license.name Apache 2.0
// @license.url https://www.apache.org/licenses/LICENSE-2.0.html
// @host localhost:8080
// @basePath /
// @schemes http https
package api
