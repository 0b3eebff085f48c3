// Package router keeps the current location of an application in a reactive
// value and matches it against a route table.
//
// A History supplies locations and reports changes. The Router stores the
// canonical location in a reactive.Ref, so any evaluation that reads
// Location or Match is notified when the location changes:
//
//	h := router.NewMemoryHistory("#/")
//	r, err := router.New(h, []router.Route{
//	    {Name: "home", Path: "/"},
//	    {Name: "user", Path: "/users/:id"},
//	    {Name: "docs", Path: "/docs/*path"},
//	})
//	w, _ := reactive.Watch(ctx, func(ctx context.Context) error {
//	    m, ok := r.Match(ctx)
//	    ...
//	})
//	h.Push("#/users/42") // w re-runs and sees route "user", id=42
//
// Route patterns are made of static segments, :name parameters and a final
// *name catch-all. Static segments win over parameters, parameters over
// catch-alls.
package router
