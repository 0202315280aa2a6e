package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- SESSION TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS session SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON session TYPE string;
    DEFINE FIELD IF NOT EXISTS status ON session TYPE string DEFAULT 'active';
    DEFINE FIELD IF NOT EXISTS created_at ON session TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON session TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS session_user ON session FIELDS user_id;
    DEFINE INDEX IF NOT EXISTS session_user_status ON session FIELDS user_id, status;

    -- ==========================================================================
    -- MESSAGE TABLE (append-only conversation turns)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS message SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS session ON message TYPE record<session>;
    DEFINE FIELD IF NOT EXISTS user_id ON message TYPE string;
    DEFINE FIELD IF NOT EXISTS role ON message TYPE string ASSERT $value IN ['user', 'assistant'];
    DEFINE FIELD IF NOT EXISTS content ON message TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON message TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS message_user ON message FIELDS user_id;
    DEFINE INDEX IF NOT EXISTS message_session ON message FIELDS session;

    -- ==========================================================================
    -- MEMORY TABLE (long-term extracted facts, append-only)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS memory SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON memory TYPE string;
    DEFINE FIELD IF NOT EXISTS session_id ON memory TYPE option<record<session>>;
    DEFINE FIELD IF NOT EXISTS category ON memory TYPE string
        ASSERT $value IN ['insight', 'preference', 'trigger', 'progress', 'relationship', 'goal', 'crisis'];
    DEFINE FIELD IF NOT EXISTS content ON memory TYPE string;
    DEFINE FIELD IF NOT EXISTS theme ON memory TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS importance ON memory TYPE option<float>;
    DEFINE FIELD IF NOT EXISTS created_at ON memory TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS memory_user ON memory FIELDS user_id;
    DEFINE INDEX IF NOT EXISTS memory_user_category ON memory FIELDS user_id, category;
    DEFINE INDEX IF NOT EXISTS memory_user_session ON memory FIELDS user_id, session_id;
    DEFINE ANALYZER IF NOT EXISTS memory_analyzer TOKENIZERS class FILTERS lowercase, ascii, snowball(english);
    DEFINE INDEX IF NOT EXISTS memory_content_ft ON memory FIELDS content FULLTEXT ANALYZER memory_analyzer BM25;

    -- ==========================================================================
    -- SUMMARY TABLE (rolling per-session digest, single row per session)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS summary SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS session ON summary TYPE record<session>;
    DEFINE FIELD IF NOT EXISTS summary ON summary TYPE string;
    DEFINE FIELD IF NOT EXISTS updated_at ON summary TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS summary_session ON summary FIELDS session UNIQUE;
`
