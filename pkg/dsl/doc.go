/*
Package dsl provides a fluent builder for declaring dialog states without
writing intent handlers by hand.

Each intent compiles to a directive pipeline (speech, cards, attribute
writes) followed by a transition:

	b := dsl.New()

	b.State("entry").
		On("LaunchIntent").Say("Welcome").Suggest("Menu.suggestions").Go("order")

	b.State("order").
		On("OrderIntent").Set("ordered", true).Say("Order.confirm").End().
		Fallback().Say("Order.retry").Stay()

	if err := b.Validate(); err != nil {
		log.Fatal(err)
	}
	if err := b.Apply(skill); err != nil {
		log.Fatal(err)
	}

An intent with no explicit transition stays on its state.
*/
package dsl
