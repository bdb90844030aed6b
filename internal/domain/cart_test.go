package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func glassLine(size string) CartLine {
	return CartLine{
		ProductRef:      "prod_aurora",
		Name:            "Aurora",
		UnitPrice:       1000,
		SelectedOptions: map[OptionKey]string{"size": size, "frame": "black"},
	}
}

func TestCartAddMergesIdenticalLines(t *testing.T) {
	var cart Cart

	require.NoError(t, cart.Add(glassLine("50x70"), 1))
	require.NoError(t, cart.Add(glassLine("50x70"), 2))

	require.Len(t, cart.Lines, 1)
	require.Equal(t, 3, cart.Lines[0].Quantity)
	require.True(t, cart.Visible)
	require.Equal(t, int64(3000), cart.Subtotal())
}

func TestCartAddKeepsDistinctLinesApart(t *testing.T) {
	var cart Cart

	require.NoError(t, cart.Add(glassLine("50x70"), 1))
	require.NoError(t, cart.Add(glassLine("70x100"), 1))

	withNote := glassLine("50x70")
	withNote.PersonalizationNote = "for Deniz"
	require.NoError(t, cart.Add(withNote, 1))

	withImage := glassLine("50x70")
	withImage.PersonalizationImage = "uploads/abc.png"
	require.NoError(t, cart.Add(withImage, 1))

	require.Len(t, cart.Lines, 4)
	require.Equal(t, 4, cart.ItemCount())
}

func TestCartAddRejectsNonPositiveQuantity(t *testing.T) {
	var cart Cart

	require.ErrorIs(t, cart.Add(glassLine("50x70"), 0), ErrInvalidQuantity)
	require.False(t, cart.Visible)
	require.True(t, cart.Empty())
}

func TestCartLineKeyIgnoresOptionOrder(t *testing.T) {
	a := CartLine{ProductRef: "p", SelectedOptions: map[OptionKey]string{"size": "s", "frame": "f"}}
	b := CartLine{ProductRef: "p", SelectedOptions: map[OptionKey]string{"frame": "f", "size": "s"}}
	c := CartLine{ProductRef: "p", SelectedOptions: map[OptionKey]string{"frame": "f", "size": "m"}}

	require.Equal(t, LineKey(a), LineKey(b))
	require.NotEqual(t, LineKey(a), LineKey(c))
}

func TestCartUpdateQuantity(t *testing.T) {
	var cart Cart
	require.NoError(t, cart.Add(glassLine("50x70"), 1))
	require.NoError(t, cart.Add(glassLine("70x100"), 1))
	key := cart.Lines[0].Key

	require.NoError(t, cart.UpdateQuantity(key, 5))
	require.Equal(t, 5, cart.Lines[0].Quantity)

	require.NoError(t, cart.UpdateQuantity(key, 0))
	require.Len(t, cart.Lines, 1)
	require.NotEqual(t, key, cart.Lines[0].Key)

	require.ErrorIs(t, cart.UpdateQuantity("missing", 1), ErrLineNotFound)
}

func TestCartRemoveAndClear(t *testing.T) {
	var cart Cart
	require.NoError(t, cart.Add(glassLine("50x70"), 2))
	require.NoError(t, cart.Add(glassLine("70x100"), 1))

	require.NoError(t, cart.Remove(cart.Lines[0].Key))
	require.Equal(t, int64(1000), cart.Subtotal())
	require.ErrorIs(t, cart.Remove("missing"), ErrLineNotFound)

	cart.Clear()
	require.True(t, cart.Empty())
	require.Zero(t, cart.Subtotal())
}

func TestCartSnapshotIsIndependent(t *testing.T) {
	var cart Cart
	require.NoError(t, cart.Add(glassLine("50x70"), 1))

	snapshot := cart.Snapshot()
	snapshot[0].Quantity = 99
	snapshot[0].SelectedOptions["size"] = "changed"

	require.Equal(t, 1, cart.Lines[0].Quantity)
	require.Equal(t, "50x70", cart.Lines[0].SelectedOptions["size"])
}

func TestNormalizeOptionKey(t *testing.T) {
	require.Equal(t, OptionKey("frame-colour"), NormalizeOptionKey("  Frame  Colour "))
	require.Equal(t, OptionKey(""), NormalizeOptionKey("   "))
}
