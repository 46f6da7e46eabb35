package recipients_test

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/notifykit/pkg/recipients"
)

func ExampleResolver_Resolve() {
	store := recipients.NewMemoryAccountStore(
		recipients.Record{ID: "a1", Role: "admin", Department: "ops", Status: "active"},
		recipients.Record{ID: "a2", Role: "admin", Department: "sales", Status: 1},
		recipients.Record{ID: "au1", Role: "auditor", Department: "ops", Status: "disabled"},
		recipients.Record{ID: "s1", Role: "sales", Department: "sales", Status: true},
	)
	r := recipients.NewResolver(store)
	ctx := context.Background()

	admins, _ := r.Resolve(ctx, recipients.Roles("admin", "auditor"))
	fmt.Println(admins)

	sales, _ := r.Resolve(ctx, recipients.Departments("sales"))
	fmt.Println(sales)

	everyone, _ := r.Resolve(ctx, recipients.Broadcast())
	fmt.Println(len(everyone))
	// Output:
	// [a1 a2]
	// [a2 s1]
	// 0
}
