// Package feed republishes account events onto AMQP so systems outside
// the dashboard (risk checks, audit) see the same order and fill stream
// the trader does.
package feed
