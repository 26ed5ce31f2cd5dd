// Package mocks provides shared test doubles.
//
// MemoryRepository is an in-memory store.Repository and store.Transactor
// with the same not-found, duplicate and rollback behavior as the Postgres
// stores. The remaining mocks use function fields or testify/mock:
//
//	jwt := &mocks.MockJWTService{
//	    ValidateTokenFn: func(ctx context.Context, token string) (*auth.Claims, error) {
//	        return &auth.Claims{UserID: userID}, nil
//	    },
//	}
package mocks
