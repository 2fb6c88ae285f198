// Copyright © 2023 Permagate, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package i18n

//revive:disable

var (
	// AO101xx: general, configuration and startup
	MsgContextCanceled       = ffm("AO10100", "Context canceled")
	MsgConfigFailed          = ffm("AO10101", "Failed to read config: %s")
	MsgConfigRequired        = ffm("AO10102", "Required configuration '%s' not set")
	MsgUnknownDatabasePlugin = ffm("AO10103", "Unknown database type '%s'")
	MsgWalletLoadFailed      = ffm("AO10104", "Failed to load wallet keyfile '%s'")
	MsgWalletParseFailed     = ffm("AO10105", "Wallet keyfile is not a valid RSA JWK")
	MsgSignFailed            = ffm("AO10106", "Data item signing failed")
	MsgNoEngine              = ffm("AO10107", "No WASM engine registered for this unit")

	// AO102xx: validation and ill-formed input
	MsgTimeParseFail       = ffm("AO10200", "Cannot parse time as RFC3339, Unix, or UnixNano: '%s'")
	MsgSortKeyInvalid      = ffm("AO10201", "Invalid sort key '%s'")
	MsgMessageSchemaFail   = ffm("AO10202", "Message failed schema validation: %s")
	MsgJSONSerializeFailed = ffm("AO10203", "Failed to serialize '%s' to JSON")
	MsgScanFailed          = ffm("AO10204", "Invalid database value %+v for target %T")
	MsgAnchorLength        = ffm("AO10205", "Data item anchor exceeds 32 bytes: %d")
	MsgTargetLength        = ffm("AO10206", "Data item target must be a base64url 32 byte id: '%s'")

	// AO103xx: sequencer, gateway and compute unit interfaces
	MsgSequencerRequestFailed = ffm("AO10300", "Sequencer request failed: %s")
	MsgGatewayRequestFailed   = ffm("AO10301", "Gateway request failed: %s")
	MsgCURequestFailed        = ffm("AO10302", "Compute unit request failed: %s")
	MsgSequencerSchemaFail    = ffm("AO10303", "Sequencer returned an ill-formed interaction '%s'")
	MsgDataFetchFailed        = ffm("AO10304", "Failed to fetch transaction data: %s")
	MsgWriteMessageFailed     = ffm("AO10305", "Failed to write message to sequencer: %s")
	MsgCheckpointTagsInvalid  = ffm("AO10306", "Checkpoint '%s' carries invalid tags")
	MsgTxNotFound             = ffm("AO10307", "Transaction '%s' not found on the gateway")
	MsgCheckpointNoSigner     = ffm("AO10308", "No wallet configured, cannot publish checkpoints")
	MsgCUSchemaFail           = ffm("AO10309", "Compute unit returned an ill-formed scheduled list for '%s'")
	MsgProcessNotFound        = ffm("AO10310", "Process '%s' could not be resolved from the chain")

	// AO104xx: result store
	MsgDBInitFailed       = ffm("AO10400", "Database initialization failed")
	MsgDBMigrationFailed  = ffm("AO10401", "Database migration failed")
	MsgDBQueryBuildFailed = ffm("AO10402", "Database query builder failed")
	MsgDBBeginFailed      = ffm("AO10403", "Database begin transaction failed")
	MsgDBCommitFailed     = ffm("AO10404", "Database commit failed")
	MsgDBQueryFailed      = ffm("AO10405", "Database query failed")
	MsgDBInsertFailed     = ffm("AO10406", "Database insert failed")
	MsgDBUpdateFailed     = ffm("AO10407", "Database update failed")
	MsgDBDeleteFailed     = ffm("AO10408", "Database delete failed")
	MsgDBReadErr          = ffm("AO10410", "Failed to read '%s' row from database")

	// AO105xx: evaluation and cranking
	MsgCrankNoTarget      = ffm("AO10500", "Outbound message has no target")
	MsgEvalEngineFailed   = ffm("AO10501", "WASM engine invocation failed for message '%s'")
	MsgMemoryEncodeFailed = ffm("AO10502", "Failed to compress process memory")
	MsgMemoryDecodeFailed = ffm("AO10503", "Failed to decode process memory (encoding=%s)")
)
