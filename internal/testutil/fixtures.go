package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/relgraph/internal/ir"
	"github.com/roach88/relgraph/internal/schema"
)

func str(name string) ir.Property { return ir.Property{Name: name, Type: ir.TypeString} }

// Schema returns the sample declarations used across tests:
//
//	User{name, age, tags*, email!, bio~, address{city, zip}}
//	Team{name}  Profile{title}  Item{label, price: money}
//	teams    User.teams n:n Team.members, with a role property
//	profile  User.profile 1:1 Profile.owner
//	item     User.item 1:1 Item.owner, reliance
//	friends  User.friends symmetric n:n
//	leader   User.leader n:1 User.followers
func Schema() *ir.Schema {
	return &ir.Schema{
		Entities: []ir.Entity{
			{Name: "User", Properties: []ir.Property{
				str("name"),
				{Name: "age", Type: ir.TypeInteger},
				{Name: "tags", Type: ir.TypeString, Collection: true},
				{Name: "email", Type: ir.TypeString, Unique: true},
				{Name: "bio", Type: ir.TypeString, Lazy: true},
				{Name: "address", Fields: []ir.Property{str("city"), str("zip")}},
			}},
			{Name: "Team", Properties: []ir.Property{str("name")}},
			{Name: "Profile", Properties: []ir.Property{str("title")}},
			{Name: "Item", Properties: []ir.Property{
				str("label"),
				{Name: "price", Type: MoneyType},
			}},
		},
		Relations: []ir.Relation{
			{Name: "teams", Source: "User", SourceProperty: "teams", Target: "Team", TargetProperty: "members",
				Type: ir.ManyToMany, Properties: []ir.Property{str("role")}},
			{Name: "profile", Source: "User", SourceProperty: "profile", Target: "Profile", TargetProperty: "owner", Type: ir.OneToOne},
			{Name: "item", Source: "User", SourceProperty: "item", Target: "Item", TargetProperty: "owner", Type: ir.OneToOne, Reliance: true},
			{Name: "friends", Source: "User", SourceProperty: "friends", Target: "User", TargetProperty: "friends", Type: ir.ManyToMany},
			{Name: "leader", Source: "User", SourceProperty: "leader", Target: "User", TargetProperty: "followers", Type: ir.ManyToOne},
		},
	}
}

// Model builds Schema with the money type registered.
func Model(t testing.TB) *schema.Model {
	t.Helper()
	m, _ := ModelWithMoney(t)
	return m
}

// ModelWithMoney builds Schema and returns the money type instance so tests
// can inspect its hook calls.
func ModelWithMoney(t testing.TB) (*schema.Model, *Money) {
	t.Helper()
	money := &Money{}
	m, err := schema.Build(Schema(), schema.WithFieldTypes(schema.NewFieldTypes(money)))
	require.NoError(t, err)
	return m, money
}
