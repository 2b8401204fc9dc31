package osc

type testCase struct {
	name    string
	obj     Packet
	raw     []byte
	wantErr bool
}

var messageTestCases = []testCase{
	{
		"no_args",
		NewMessage("/a"),
		[]byte{'/', 'a', 0, 0, ',', 0, 0, 0},
		false,
	},
	{
		"int32",
		NewMessage("/a", int32(1)),
		[]byte{'/', 'a', 0, 0, ',', 'i', 0, 0, 0, 0, 0, 1},
		false,
	},
	{
		"float32",
		NewMessage("/encoder/1", float32(0.5)),
		[]byte{'/', 'e', 'n', 'c', 'o', 'd', 'e', 'r', '/', '1', 0, 0, ',', 'f', 0, 0, 0x3f, 0, 0, 0},
		false,
	},
	{
		"string_bool_nil",
		NewMessage("/s", "abc", true, false, nil),
		[]byte{'/', 's', 0, 0, ',', 's', 'T', 'F', 'N', 0, 0, 0, 'a', 'b', 'c', 0},
		false,
	},
	{
		"blob",
		NewMessage("/b", []byte{1, 2, 3}),
		[]byte{'/', 'b', 0, 0, ',', 'b', 0, 0, 0, 0, 0, 3, 1, 2, 3, 0},
		false,
	},
	{
		"int64_float64_timetag",
		NewMessage("/x", int64(-1), float64(1), Timetag(2)),
		[]byte{
			'/', 'x', 0, 0, ',', 'h', 'd', 't', 0, 0, 0, 0,
			0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
			0x3f, 0xf0, 0, 0, 0, 0, 0, 0,
			0, 0, 0, 0, 0, 0, 0, 2,
		},
		false,
	},
}

var bundleTestCases = []testCase{
	{
		"empty_bundle",
		&Bundle{Timetag: 0},
		[]byte{'#', 'b', 'u', 'n', 'd', 'l', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0},
		false,
	},
	{
		"two_messages",
		&Bundle{Timetag: ImmediateTimetag, Elements: []Packet{NewMessage("/a", int32(1)), NewMessage("/b")}},
		[]byte{
			'#', 'b', 'u', 'n', 'd', 'l', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 1,
			0, 0, 0, 12, '/', 'a', 0, 0, ',', 'i', 0, 0, 0, 0, 0, 1,
			0, 0, 0, 8, '/', 'b', 0, 0, ',', 0, 0, 0,
		},
		false,
	},
}
