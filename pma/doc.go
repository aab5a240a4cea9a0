// Package pma is a client for whole-slide imaging services that speak the
// PMA.core HTTP API.
//
// A Client holds its own session registry and a per-session cache of slide
// metadata documents. Sessions come from Connect (credentials), Register
// (an id obtained elsewhere) or a local lite instance, which needs no
// credentials and answers under LiteSessionID.
//
//	c := pma.New(pma.WithLogger(logger))
//	session, err := c.Connect(ctx, "https://host/pma.core/", "user", "secret")
//	if err != nil {
//		return err
//	}
//	defer c.Disconnect(ctx, session)
//
//	levels, err := c.ZoomLevels(ctx, session, "Reference/CMU-1.svs", 0)
//
// Metadata documents are fetched once and cached until Refresh or
// Disconnect. Derived values (pixel dimensions, tile grids, magnification)
// are computed from the cached document. When a field they need is absent
// the zero value is returned and a warning logged, unless the client was
// built WithStrictMetadata(true).
package pma
