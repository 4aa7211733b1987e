package stores_test

import (
	"context"
	"fmt"
	"log"

	"github.com/winxky/cordova-plugman/pkg/stores"
)

// ExampleNewSQLiteStore demonstrates creating and initializing a new SQLite store.
func ExampleNewSQLiteStore() {
	store, err := stores.NewSQLiteStore(stores.Config{
		Path: ":memory:", // Use in-memory database for example
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}

	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	defer store.Close()

	fmt.Println("Store initialized successfully")
	// Output: Store initialized successfully
}

// ExampleSQLiteStore_SaveInstallation demonstrates recording an installed plugin.
func ExampleSQLiteStore_SaveInstallation() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	inst := &stores.Installation{
		PluginID:    "org.acme.echo",
		Platform:    "blackberry",
		ProjectPath: "/projects/app",
		PluginDir:   "/plugins/echo",
		WWWDir:      "/projects/app/www",
		Spec:        `{}`,
		Mutations:   `{"files":["ext-qnx/org.acme.echo/client.js"]}`,
	}
	if err := store.SaveInstallation(ctx, inst); err != nil {
		log.Fatal(err)
	}

	installed, err := store.ListInstallations(ctx, "/projects/app")
	if err != nil {
		log.Fatal(err)
	}

	for _, i := range installed {
		fmt.Printf("%s (%s)\n", i.PluginID, i.Platform)
	}
	// Output: org.acme.echo (blackberry)
}
