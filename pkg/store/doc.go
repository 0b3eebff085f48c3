// Package store is a state container built on package reactive.
//
// A Store owns one observed state object. State changes go through named
// mutations (Commit); asynchronous or composite work goes through named
// actions (Dispatch), which commit mutations themselves. Getters derive
// values from the state and are re-evaluated on every call, so a getter
// read inside an evaluation registers the evaluation on every key the getter
// touched.
//
//	st, err := store.New(store.Options{
//	    State: func() map[string]any { return map[string]any{"count": 0} },
//	    Mutations: map[string]store.Mutation{
//	        "increment": func(ctx context.Context, s *reactive.Observer, _ any) error {
//	            n, _ := s.Get(ctx, "count")
//	            return s.Set(ctx, "count", n.(int)+1)
//	        },
//	    },
//	})
//	_ = st.Commit(ctx, "increment", nil)
//
// Snapshots of the state can be encoded as protobuf and kept in a directory
// or an S3 bucket (FilePersister, S3Persister).
package store
