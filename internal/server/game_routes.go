package server

// RegisterGameRoutes registers the plinko API.
func (s *FiberServer) RegisterGameRoutes() {
	api := s.App.Group("/api/v1")
	plinko := api.Group("/plinko")

	plinko.Post("/instantiate", s.instantiateHandler)
	plinko.Post("/play", s.playHandler)

	house := plinko.Group("/house")
	house.Post("/withdraw", s.withdrawHouseHandler)
	house.Post("/fund", s.fundHouseHandler)
	house.Post("/sync", s.syncBalanceHandler)

	plinko.Post("/prizes/:day/claim", s.claimPrizeHandler)
	plinko.Get("/prizes/:day/players/:player", s.winnablePrizeHandler)

	plinko.Get("/config", s.configHandler)
	plinko.Patch("/config/prize", s.updatePrizeConfigHandler)

	plinko.Get("/stats", s.statsHandler)
	plinko.Get("/stats/daily", s.dailyStatsHandler)
	plinko.Get("/players/:player/history", s.historyHandler)
	plinko.Get("/players/:player/stats", s.userStatsHandler)
	plinko.Get("/leaderboards/global/:type", s.globalLeaderboardHandler)
	plinko.Get("/leaderboards/daily/:type", s.dailyLeaderboardHandler)

	plinko.Get("/fairness/verify", s.verifyHandler)
}
